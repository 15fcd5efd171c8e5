package gatewaystore

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/knxip-core/internal/infrastructure/database"
	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/discovery"
)

// Store persists discovered gateways and Secure session audit records.
type Store struct {
	db *database.DB

	upsertGatewayStmt *sql.Stmt
}

// Open prepares a Store around an already-migrated database connection.
func Open(db *database.DB) (*Store, error) {
	stmt, err := db.Prepare(`
		INSERT INTO gateways (
			ip, port, name, individual_address, serial_number,
			multicast_address, supports_tunneling, supports_routing,
			supports_secure_wrap, supports_secure_tunnel,
			first_seen_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ip, port) DO UPDATE SET
			name = excluded.name,
			individual_address = excluded.individual_address,
			serial_number = excluded.serial_number,
			multicast_address = excluded.multicast_address,
			supports_tunneling = excluded.supports_tunneling,
			supports_routing = excluded.supports_routing,
			supports_secure_wrap = excluded.supports_secure_wrap,
			supports_secure_tunnel = excluded.supports_secure_tunnel,
			last_seen_at = excluded.last_seen_at
	`)
	if err != nil {
		return nil, fmt.Errorf("gatewaystore: preparing gateway upsert: %w", err)
	}
	return &Store{db: db, upsertGatewayStmt: stmt}, nil
}

// Close releases the store's prepared statements. The underlying
// database connection is owned by the caller.
func (s *Store) Close() error {
	if s.upsertGatewayStmt != nil {
		return s.upsertGatewayStmt.Close()
	}
	return nil
}

// Record is a persisted gateway with first/last-seen bookkeeping.
type Record struct {
	discovery.GatewayDescriptor
	FirstSeenAt time.Time
	LastSeenAt  time.Time
}

// UpsertGateway records a gateway observed by discovery.Scan or
// discovery.Describe, updating last_seen_at on repeat sightings.
func (s *Store) UpsertGateway(ctx context.Context, g discovery.GatewayDescriptor) error {
	now := time.Now().UTC().Format(time.RFC3339)
	serial := fmt.Sprintf("%x", g.SerialNumber)
	multicast := ""
	if g.MulticastAddress != nil {
		multicast = g.MulticastAddress.String()
	}

	_, err := s.upsertGatewayStmt.ExecContext(ctx,
		g.IP.String(), g.Port, g.Name, g.IndividualAddress.String(), serial,
		multicast, boolToInt(g.SupportsTunneling), boolToInt(g.SupportsRouting),
		boolToInt(g.SupportsSecureWrap), boolToInt(g.SupportsSecureTunnel),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("gatewaystore: upserting gateway %s:%d: %w", g.IP, g.Port, err)
	}
	return nil
}

// ListGateways returns every known gateway, ordered by most recently seen.
func (s *Store) ListGateways(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ip, port, name, individual_address, serial_number,
		       multicast_address, supports_tunneling, supports_routing,
		       supports_secure_wrap, supports_secure_tunnel,
		       first_seen_at, last_seen_at
		FROM gateways
		ORDER BY last_seen_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("gatewaystore: listing gateways: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r                                      Record
			ip                                     string
			individualAddress, serial, multicast   string
			tunneling, routing, secureWrap, secureT int
			firstSeen, lastSeen                     string
		)
		if err := rows.Scan(&ip, &r.Port, &r.Name, &individualAddress, &serial,
			&multicast, &tunneling, &routing, &secureWrap, &secureT,
			&firstSeen, &lastSeen); err != nil {
			return nil, fmt.Errorf("gatewaystore: scanning gateway row: %w", err)
		}

		r.IP = parseIP(ip)
		if ia, err := address.ParseIndividual(individualAddress); err == nil {
			r.IndividualAddress = ia
		}
		r.SupportsTunneling = tunneling != 0
		r.SupportsRouting = routing != 0
		r.SupportsSecureWrap = secureWrap != 0
		r.SupportsSecureTunnel = secureT != 0
		r.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeen)
		r.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)

		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gatewaystore: iterating gateways: %w", err)
	}
	return records, nil
}

func parseIP(s string) net.IP {
	return net.ParseIP(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
