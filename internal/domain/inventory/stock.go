package inventory

// Level identifies the granularity at which a stock quantity is tracked.
type Level string

const (
	LevelProduct Level = "product"
	LevelVariant Level = "variant"
	LevelBranch  Level = "branch"
)

// Adjustment summarizes a single stock increment for logging and metrics.
type Adjustment struct {
	Level    Level
	Quantity int
	Applied  bool // false when the target row does not exist (branch/variant)
}
