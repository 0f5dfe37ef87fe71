package utils

// headers exchanged between the answering machine and the upload-link service
const (
	HEADER_CLIENT_ID       = "X-Client-Id"
	HEADER_SOURCE_KEY      = "X-Source"
	HEADER_REQUEST_ID      = "X-Request-Id"
	HEADER_ENVIRONMENT_KEY = "X-Environment"
)

const SOURCE_ANSWERING_MACHINE = "answering-machine"
