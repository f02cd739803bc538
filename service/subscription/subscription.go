// Package subscription stores which destinations follow which offices.
package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/stepflow/internal/clock"
	"github.com/viant/stepflow/model/fault"
)

// Office is a weather forecast office.
type Office struct {
	ID       int    `json:"officeId"`
	CallSign string `json:"office"`
	Name     string `json:"name,omitempty"`
}

// Subscription links a channel destination to an office.
type Subscription struct {
	ID          int64     `json:"id,omitempty"`
	OfficeID    int       `json:"officeId"`
	Guild       string    `json:"guild,omitempty"`
	Channel     string    `json:"channel"`
	Destination string    `json:"destination"`
	Dev         bool      `json:"dev,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Scope selects which subscriptions Unsubscribe removes.
type Scope string

const (
	// ByChannel removes every subscription of a channel.
	ByChannel Scope = "channel"
	// ByOfficeChannel removes the subscription of a channel to one office.
	ByOfficeChannel Scope = "officeChannel"
)

// ErrUnknownOffice is returned for call signs without an office row.
var ErrUnknownOffice = errors.New("unknown office")

// Store is the relational subscription store.
type Store struct {
	db *sql.DB
}

// New creates a store over a database opened by service/dao/sqlite.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureOffice inserts or renames an office.
func (s *Store) EnsureOffice(ctx context.Context, office *Office) error {
	if office.ID <= 0 || len(office.CallSign) != 3 {
		return fault.Invalid("ensure office", fmt.Errorf("invalid office %d %q", office.ID, office.CallSign))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO offices (office_id, call_sign, name) VALUES (?, ?, ?)
		 ON CONFLICT (office_id) DO UPDATE SET call_sign = excluded.call_sign, name = excluded.name`,
		office.ID, strings.ToUpper(office.CallSign), office.Name,
	)
	if err != nil {
		return fault.Persistence("ensure office", err)
	}
	return nil
}

// Office looks an office up by call sign.
func (s *Store) Office(ctx context.Context, callSign string) (*Office, error) {
	office := &Office{}
	err := s.db.QueryRowContext(ctx,
		`SELECT office_id, call_sign, name FROM offices WHERE call_sign = ?`,
		strings.ToUpper(callSign),
	).Scan(&office.ID, &office.CallSign, &office.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.Invalid("lookup office", fmt.Errorf("%w: %s", ErrUnknownOffice, callSign))
	}
	if err != nil {
		return nil, fault.Persistence("lookup office", err)
	}
	return office, nil
}

// ActiveOffices lists offices with at least one subscription; call signs
// are lower-cased as used in page URLs.
func (s *Store) ActiveOffices(ctx context.Context) ([]Office, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.office_id, o.call_sign, o.name
		FROM offices o
		INNER JOIN subscriptions s ON s.office_id = o.office_id
		GROUP BY o.office_id
		HAVING COUNT(s.id) > 0
		ORDER BY o.office_id`)
	if err != nil {
		return nil, fault.Persistence("list active offices", err)
	}
	defer rows.Close()
	var ret []Office
	for rows.Next() {
		var office Office
		if err := rows.Scan(&office.ID, &office.CallSign, &office.Name); err != nil {
			return nil, fault.Persistence("list active offices", err)
		}
		office.CallSign = strings.ToLower(office.CallSign)
		ret = append(ret, office)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Persistence("list active offices", err)
	}
	return ret, nil
}

// Destinations lists destinations of an office.  A dev lookup returns only
// destinations flagged dev.
func (s *Store) Destinations(ctx context.Context, officeID int, dev bool) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT destination FROM subscriptions WHERE office_id = ? AND (? = 0 OR dev = 1) ORDER BY id`,
		officeID, dev,
	)
	if err != nil {
		return nil, fault.Persistence("list destinations", err)
	}
	defer rows.Close()
	var ret []string
	for rows.Next() {
		var destination string
		if err := rows.Scan(&destination); err != nil {
			return nil, fault.Persistence("list destinations", err)
		}
		ret = append(ret, destination)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.Persistence("list destinations", err)
	}
	return ret, nil
}

// Subscribe adds a subscription or refreshes the destination of an
// existing (office, channel) pair.
func (s *Store) Subscribe(ctx context.Context, subscription *Subscription) error {
	if subscription.Channel == "" || subscription.Destination == "" {
		return fault.Invalid("subscribe", fmt.Errorf("channel and destination are required"))
	}
	if subscription.CreatedAt.IsZero() {
		subscription.CreatedAt = clock.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (office_id, guild, channel, destination, dev, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (office_id, channel) DO UPDATE SET destination = excluded.destination, guild = excluded.guild, dev = excluded.dev`,
		subscription.OfficeID, subscription.Guild, subscription.Channel, subscription.Destination, subscription.Dev, subscription.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fault.Persistence("subscribe", err)
	}
	return nil
}

// Unsubscribe removes subscriptions of channel within scope and returns how
// many were removed.  officeID is required for ByOfficeChannel only.
func (s *Store) Unsubscribe(ctx context.Context, scope Scope, channel string, officeID int) (int64, error) {
	if channel == "" {
		return 0, fault.Invalid("unsubscribe", fmt.Errorf("channel is required"))
	}
	var (
		result sql.Result
		err    error
	)
	switch scope {
	case ByChannel:
		result, err = s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE channel = ?`, channel)
	case ByOfficeChannel:
		if officeID <= 0 {
			return 0, fault.Invalid("unsubscribe", fmt.Errorf("office is required for scope %s", scope))
		}
		result, err = s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE channel = ? AND office_id = ?`, channel, officeID)
	default:
		return 0, fault.Invalid("unsubscribe", fmt.Errorf("unsupported scope %q", scope))
	}
	if err != nil {
		return 0, fault.Persistence("unsubscribe", err)
	}
	return result.RowsAffected()
}
