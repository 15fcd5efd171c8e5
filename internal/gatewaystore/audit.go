package gatewaystore

import (
	"context"
	"fmt"
	"time"
)

// SessionAudit records the lifecycle of a Secure Tunnelling session for
// compliance and troubleshooting, independent of the session's own
// in-memory Stats.
type SessionAudit struct {
	ID          int64
	GatewayIP   string
	GatewayPort int
	SessionID   uint16
	UserID      uint8
	OpenedAt    time.Time
	ClosedAt    *time.Time
	CloseReason string
}

// OpenSession records the start of a Secure session handshake.
func (s *Store) OpenSession(ctx context.Context, gatewayIP string, gatewayPort int, sessionID uint16, userID uint8) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO secure_session_audit (gateway_ip, gateway_port, session_id, user_id, opened_at)
		VALUES (?, ?, ?, ?, ?)
	`, gatewayIP, gatewayPort, sessionID, userID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("gatewaystore: opening session audit: %w", err)
	}
	return res.LastInsertId()
}

// CloseSession records that a Secure session ended, with the reason
// ("close", "keepalive timeout", "transport error", ...).
func (s *Store) CloseSession(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE secure_session_audit SET closed_at = ?, close_reason = ? WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), reason, id)
	if err != nil {
		return fmt.Errorf("gatewaystore: closing session audit %d: %w", id, err)
	}
	return nil
}

// RecentSessions returns the most recent session audit records for a
// gateway, newest first.
func (s *Store) RecentSessions(ctx context.Context, gatewayIP string, gatewayPort, limit int) ([]SessionAudit, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, gateway_ip, gateway_port, session_id, user_id, opened_at, closed_at, close_reason
		FROM secure_session_audit
		WHERE gateway_ip = ? AND gateway_port = ?
		ORDER BY opened_at DESC
		LIMIT ?
	`, gatewayIP, gatewayPort, limit)
	if err != nil {
		return nil, fmt.Errorf("gatewaystore: querying session audit: %w", err)
	}
	defer rows.Close()

	var out []SessionAudit
	for rows.Next() {
		var a SessionAudit
		var opened string
		var closed *string
		if err := rows.Scan(&a.ID, &a.GatewayIP, &a.GatewayPort, &a.SessionID, &a.UserID, &opened, &closed, &a.CloseReason); err != nil {
			return nil, fmt.Errorf("gatewaystore: scanning session audit row: %w", err)
		}
		a.OpenedAt, _ = time.Parse(time.RFC3339, opened)
		if closed != nil {
			if t, err := time.Parse(time.RFC3339, *closed); err == nil {
				a.ClosedAt = &t
			}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gatewaystore: iterating session audit: %w", err)
	}
	return out, nil
}
