package mailbus

// Database is a storage backend that has to be opened before its services are used
type Database interface {
	Open() error
	Close() error
}
