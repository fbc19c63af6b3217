package domain

// Template is a purchasable site template. Price is in whole roubles.
type Template struct {
	ID          int64
	Name        string
	Description string
	Price       int64
	Category    string
	FilePath    string
	ImagePath   string
}
