package databases

import "go.mongodb.org/mongo-driver/mongo/options"

// pageOpts converts a 1-based page and limit into find options. Page 0 is
// treated as page 1 so an absent query parameter still returns the first page.
func pageOpts(limit, page int) *options.FindOptions {
	if page < 1 {
		page = 1
	}
	l := int64(limit)
	skip := int64(page-1) * l
	return &options.FindOptions{Limit: &l, Skip: &skip}
}
