package openfinance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type recordingPublisher struct {
	calls []string
	err   error
}

func (p *recordingPublisher) PublishConnectionSync(_ context.Context, connectionID, ownerID, _ string) error {
	p.calls = append(p.calls, connectionID+"@"+ownerID)
	return p.err
}

func setup(opts ...Option) (*Service, *memory.Store, *clock) {
	clk := &clock{now: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithoutSampleData(), memory.WithClock(clk.Now))
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	return New(st, "https://app.finboard.test/", opts...), st, clk
}

func balances(t *testing.T, st *memory.Store) map[string]decimal.Decimal {
	t.Helper()
	accounts, err := st.ListAccounts(context.Background())
	require.NoError(t, err)
	out := make(map[string]decimal.Decimal)
	for _, a := range accounts {
		out[a.Name] = a.Balance
	}
	return out
}

func TestInstitutionsAndConnect(t *testing.T) {
	svc, _, _ := setup()
	assert.Len(t, Institutions(), 8)

	u, err := svc.Connect("nubank")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://auth.openfinance.com.br/connect/nubank?"), u)
	assert.Contains(t, u, "client_id=finboard")
	assert.Contains(t, u, "redirect_uri=https%3A%2F%2Fapp.finboard.test%2Fcallback")

	_, err = svc.Connect("banco_imaginario")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHandleCallback(t *testing.T) {
	svc, st, clk := setup()
	ctx := context.Background()

	linked, err := svc.HandleCallback(ctx, "code123", "nubank")
	require.NoError(t, err)
	assert.Equal(t, "Nubank", linked.InstitutionName)
	assert.Equal(t, "nubank", linked.InstitutionID)
	assert.Equal(t, core.ConnectionConnected, linked.Status)
	require.NotNil(t, linked.LastSync)
	assert.True(t, linked.LastSync.Equal(clk.now))
	require.Len(t, linked.Accounts, 2)
	assert.Equal(t, "1650.2", linked.Balance().String())

	stored, err := st.ListConnections(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "nubank:code123", stored[0].ConnectionID)

	_, err = svc.HandleCallback(ctx, "", "nubank")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = svc.HandleCallback(ctx, "code", "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSyncMirrorsAccountsAndSkipsImported(t *testing.T) {
	svc, st, clk := setup()
	ctx := context.Background()

	linked, err := svc.HandleCallback(ctx, "code", "nubank")
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Hour)
	res, err := svc.Sync(ctx, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*transactionsPerAccount, res.Imported)
	assert.Len(t, res.Transactions, 2*transactionsPerAccount)

	b := balances(t, st)
	require.Len(t, b, 2)
	assert.True(t, b["Conta do Nubank"].Equal(decimal.RequireFromString("2500.50")), b["Conta do Nubank"].String())
	assert.True(t, b["Cartão de Crédito Nubank"].Equal(decimal.RequireFromString("-850.30")))

	again, err := svc.Sync(ctx, linked.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Imported)
	assert.Len(t, balances(t, st), 2, "mirrors are reused")

	txns, err := st.ListTransactions(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, txns, 2*transactionsPerAccount)
	for _, txn := range txns {
		require.NotNil(t, txn.Notes)
		assert.True(t, strings.HasPrefix(*txn.Notes, notesPrefix))
		if txn.Amount.IsPositive() {
			assert.Equal(t, core.Income, txn.Type)
		} else {
			assert.Equal(t, core.Expense, txn.Type)
		}
	}

	conns, err := st.ListConnections(ctx)
	require.NoError(t, err)
	assert.True(t, conns[0].LastSync.Equal(clk.now))
}

func TestSecondConnectionGetsItsOwnMirrors(t *testing.T) {
	svc, st, _ := setup()
	ctx := context.Background()

	first, err := svc.HandleCallback(ctx, "code1", "nubank")
	require.NoError(t, err)
	second, err := svc.HandleCallback(ctx, "code2", "nubank")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	for _, id := range []string{first.ID, second.ID, first.ID} {
		_, err := svc.Sync(ctx, id)
		require.NoError(t, err)
	}

	accounts, err := st.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 4)
	want := map[string]decimal.Decimal{
		"Conta do Nubank":          decimal.RequireFromString("2500.50"),
		"Cartão de Crédito Nubank": decimal.RequireFromString("-850.30"),
	}
	for _, a := range accounts {
		assert.Truef(t, a.Balance.Equal(want[a.Name]), "%s: %s", a.Name, a.Balance)
	}

	txns, err := st.ListTransactions(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, txns, 4*transactionsPerAccount)
}

func TestFindMirrorMatchesWholeAccountID(t *testing.T) {
	imported := map[string]string{
		"trans_conn_1_acc_nubank_cc_0": "acc_local_cc",
		"trans_conn_1_acc_nubank_x":    "acc_local_x",
	}
	id, ok := findMirror(imported, "trans_conn_1_acc_nubank_cc_")
	require.True(t, ok)
	assert.Equal(t, "acc_local_cc", id)

	_, ok = findMirror(imported, "trans_conn_1_acc_nubank_")
	assert.False(t, ok)
	_, ok = findMirror(imported, "trans_conn_2_acc_nubank_cc_")
	assert.False(t, ok)
}

func TestSimulatedDataIsDeterministic(t *testing.T) {
	conn := core.Connection{ID: "conn_1", ConnectionID: "bb:xyz"}
	inst, err := institutionByID("bb")
	require.NoError(t, err)

	a := simulatedAccounts(inst, conn)
	b := simulatedAccounts(inst, conn)
	require.Len(t, a, 1)
	assert.Equal(t, "acc_bb_default", a[0].ID)
	assert.True(t, a[0].Balance.Equal(b[0].Balance))

	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	ta := simulatedTransactions(conn, a, now)
	tb := simulatedTransactions(conn, b, now)
	assert.Equal(t, ta, tb)
	for _, txn := range ta {
		assert.False(t, txn.Amount.IsZero())
		assert.False(t, txn.Date.After(core.DateOf(now)))
	}
}

func TestExpiredConsent(t *testing.T) {
	svc, st, clk := setup()
	ctx := context.Background()

	linked, err := svc.HandleCallback(ctx, "code", "itau")
	require.NoError(t, err)

	clk.now = clk.now.AddDate(1, 0, 1)
	_, err = svc.Sync(ctx, linked.ID)
	assert.ErrorIs(t, err, ErrConsentExpired)
	assert.ErrorIs(t, err, core.ErrValidation)

	conns, err := st.ListConnections(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.ConnectionExpired, conns[0].Status)

	h, err := svc.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Total)
	assert.Equal(t, 1, h.Expired)
	assert.Zero(t, h.Active)
}

func TestRequestSync(t *testing.T) {
	ctx := auth.WithOwner(context.Background(), core.Owner{ID: "user_9"})

	t.Run("inline without publisher", func(t *testing.T) {
		svc, _, _ := setup()
		linked, err := svc.HandleCallback(ctx, "c", "inter")
		require.NoError(t, err)

		req, err := svc.RequestSync(ctx, linked.ID)
		require.NoError(t, err)
		assert.False(t, req.Queued)
		require.NotNil(t, req.Result)
		assert.Equal(t, transactionsPerAccount, req.Result.Imported)
	})

	t.Run("queued with publisher", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc, _, _ := setup(WithPublisher(pub, auth.ContextResolver{}))
		linked, err := svc.HandleCallback(ctx, "c", "c6")
		require.NoError(t, err)

		req, err := svc.RequestSync(ctx, linked.ID)
		require.NoError(t, err)
		assert.True(t, req.Queued)
		assert.Equal(t, []string{linked.ID + "@user_9"}, pub.calls)

		_, err = svc.RequestSync(ctx, "conn_missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("falls back inline when publishing fails", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("broker down")}
		svc, _, _ := setup(WithPublisher(pub, auth.ContextResolver{}))
		linked, err := svc.HandleCallback(ctx, "c", "caixa")
		require.NoError(t, err)

		req, err := svc.RequestSync(ctx, linked.ID)
		require.NoError(t, err)
		assert.False(t, req.Queued)
		require.NotNil(t, req.Result)
	})
}

func TestSyncStale(t *testing.T) {
	svc, _, clk := setup()
	ctx := context.Background()

	_, err := svc.HandleCallback(ctx, "a", "bradesco")
	require.NoError(t, err)
	_, err = svc.HandleCallback(ctx, "b", "santander")
	require.NoError(t, err)

	n, err := svc.SyncStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "both were synced at callback time")

	clk.now = clk.now.Add(2 * time.Hour)
	n, err = svc.SyncStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRemove(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	linked, err := svc.HandleCallback(ctx, "code", "nubank")
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, linked.ID))

	_, err = svc.Sync(ctx, linked.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, linked.ID), core.ErrNotFound)

	list, err := svc.Connections(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
