package constants

// Handler pagination constants
const (
	// DefaultHandlerPageSize is the page size for paginated handler endpoints
	DefaultHandlerPageSize = 100

	// MaxHandlerPageSize caps the limit query parameter
	MaxHandlerPageSize = 1000
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// File upload constants
const (
	// MaxFrameUploadSize is the maximum accepted size of an uploaded frame (32 MB)
	MaxFrameUploadSize = 32 << 20

	// MaxFramePixels caps width*height of a frame before it is decoded (40 megapixels)
	MaxFramePixels = 40_000_000
)
