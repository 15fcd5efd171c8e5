package gatewaystore

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/nerrad567/knxip-core/internal/infrastructure/database"
	_ "github.com/nerrad567/knxip-core/migrations"
	"github.com/nerrad567/knxip-core/knx/address"
	"github.com/nerrad567/knxip-core/knx/discovery"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "gateways.db")
	db, err := database.Open(database.Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("db.Migrate() error = %v", err)
	}

	store, err := Open(db)
	if err != nil {
		t.Fatalf("gatewaystore.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertGateway_InsertsThenUpdatesOnRepeatSighting(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	g := discovery.GatewayDescriptor{
		IP:                net.IPv4(192, 168, 1, 10),
		Port:              3671,
		Name:              "Gira KNX/IP-Router",
		IndividualAddress: address.IndividualFromUint16(0x1101),
		SupportsTunneling: true,
		SupportsRouting:   true,
	}

	if err := store.UpsertGateway(ctx, g); err != nil {
		t.Fatalf("UpsertGateway() error = %v", err)
	}

	records, err := store.ListGateways(ctx)
	if err != nil {
		t.Fatalf("ListGateways() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].Name != g.Name {
		t.Errorf("Name = %q, want %q", records[0].Name, g.Name)
	}
	if !records[0].SupportsTunneling || !records[0].SupportsRouting {
		t.Error("expected SupportsTunneling and SupportsRouting to be true")
	}

	g.Name = "Gira KNX/IP-Router (renamed)"
	if err := store.UpsertGateway(ctx, g); err != nil {
		t.Fatalf("UpsertGateway() (update) error = %v", err)
	}

	records, err = store.ListGateways(ctx)
	if err != nil {
		t.Fatalf("ListGateways() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d after update, want 1 (expected upsert not insert)", len(records))
	}
	if records[0].Name != g.Name {
		t.Errorf("Name after update = %q, want %q", records[0].Name, g.Name)
	}
}

func TestSessionAudit_OpenAndClose(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.OpenSession(ctx, "192.168.1.10", 3671, 7, 1)
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	records, err := store.RecentSessions(ctx, "192.168.1.10", 3671, 10)
	if err != nil {
		t.Fatalf("RecentSessions() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].ClosedAt != nil {
		t.Error("expected ClosedAt to be nil before CloseSession")
	}

	if err := store.CloseSession(ctx, id, "keepalive timeout"); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	records, err = store.RecentSessions(ctx, "192.168.1.10", 3671, 10)
	if err != nil {
		t.Fatalf("RecentSessions() error = %v", err)
	}
	if records[0].ClosedAt == nil {
		t.Fatal("expected ClosedAt to be set after CloseSession")
	}
	if records[0].CloseReason != "keepalive timeout" {
		t.Errorf("CloseReason = %q, want %q", records[0].CloseReason, "keepalive timeout")
	}
}
