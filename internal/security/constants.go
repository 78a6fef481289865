package security

const (
	errKeyringNotAvailable = "keyring not available"
	keyMongoPasswordFmt    = "mongo:%s@%s"
)
