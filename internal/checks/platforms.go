package checks

import (
	"context"
	"fmt"
)

// platformNames resolves platform ids to display names, querying the
// catalog only for ids not already cached this run.
func (c *Checker) platformNames(ctx context.Context, ids []int64) ([]string, error) {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := c.platforms.Get(id); ok {
			names = append(names, name)
			continue
		}
		recs, err := c.catalog.Platforms(ctx, fmt.Sprintf("fields name; where id = %d;", id))
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			c.log.Warn("unknown platform id", "id", id)
			continue
		}
		c.platforms.Add(id, recs[0].Name)
		names = append(names, recs[0].Name)
	}
	return names, nil
}
