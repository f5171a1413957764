// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultTolerance is the maximum Euclidean distance for two descriptors to
	// be considered the same person. Lower values = stricter matching
	DefaultTolerance = 0.4

	// DefaultDescriptorDim is the embedding length produced by the face model
	DefaultDescriptorDim = 128

	// HNSWMaxNeighbors is the M parameter of the indexed searcher graph
	HNSWMaxNeighbors = 16

	// HNSWSearchK is the number of neighbors fetched from the graph per probe
	HNSWSearchK = 32
)

// Attendance constants
const (
	// PeriodsPerDay is the number of class periods in a school day
	PeriodsPerDay = 5

	// DateLayout is the storage format of attendance dates
	DateLayout = "2006-01-02"

	// TimeLayout is the storage format of attendance times
	TimeLayout = "15:04:05"

	// MonthLayout is the format of the monthly report selector
	MonthLayout = "2006-01"

	// AllDepartments disables the department filter of listings and reports
	AllDepartments = "all"
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) for uploaded images
	MaxImageSize = 1280

	// MaxImagePixels caps the decoded size (width * height) of an uploaded image
	MaxImagePixels = 40_000_000

	// MaxUploadBytes caps the size of a JSON request carrying a base64 image
	MaxUploadBytes = 16 << 20

	// FaceCropPadding is the relative margin added around a face crop
	FaceCropPadding = 0.2
)

// Storage constants
const (
	// StorageRetries is the number of retries for a failed storage call
	StorageRetries = 1

	// DescriptorFileVersion is the current layout version of the descriptor file
	DescriptorFileVersion = 1
)
