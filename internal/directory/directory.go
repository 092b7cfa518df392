package directory

import (
	"context"
	"fmt"

	"github.com/kevinsshikuku/TrendPot-sub000/internal/domain"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/infra"
	"github.com/kevinsshikuku/TrendPot-sub000/internal/sqlinline"
)

// UserDirectory is the read-only collaborator for creator lookups. The
// settlement core only ever reads id, currency and phone; user records are
// owned elsewhere.
type UserDirectory struct {
	sql infra.SQLExecutor
}

func NewUserDirectory(sql infra.SQLExecutor) *UserDirectory {
	return &UserDirectory{sql: sql}
}

func (d *UserDirectory) CreatorProfile(ctx context.Context, creatorID string) (domain.CreatorProfile, error) {
	var p domain.CreatorProfile
	row := d.sql.QueryRow(ctx, sqlinline.QSelectCreatorProfile, creatorID)
	if err := row.Scan(&p.CreatorID, &p.Currency, &p.Phone); err != nil {
		if infra.IsNoRows(err) {
			return domain.CreatorProfile{}, fmt.Errorf("creator %s: %w", creatorID, domain.ErrNotFound)
		}
		return domain.CreatorProfile{}, err
	}
	return p, nil
}
