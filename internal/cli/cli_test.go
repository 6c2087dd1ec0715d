package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"finboard/internal/auth"
	"finboard/internal/dataservice"
	"finboard/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	base := map[string]string{
		"PORT":              "8080",
		"LOG_LEVEL":         "error",
		"DATA_BACKEND":      "memory",
		"AMQP_URL":          "",
		"FINBOARD_OWNER_ID": "user_1",
	}
	for k, v := range kv {
		base[k] = v
	}
	for k, v := range base {
		t.Setenv(k, v)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReportCommandUsesSampleData(t *testing.T) {
	setEnv(t, nil)

	out, err := execute(t, "report", "--period", "3months")
	require.NoError(t, err)
	assert.Contains(t, out, "(fallback data)")
	assert.Contains(t, out, "Expenses")
	assert.Contains(t, out, "Moradia")
	assert.Contains(t, out, "Aluguel")
}

func TestReportCommandJSON(t *testing.T) {
	setEnv(t, nil)

	out, err := execute(t, "report", "--json")
	require.NoError(t, err)
	var rep periodReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "fallback", rep.Mode)
	assert.True(t, rep.Totals.Income.IsPositive())
}

func TestReportUnknownPeriodUsesThreeMonths(t *testing.T) {
	setEnv(t, nil)

	out, err := execute(t, "report", "--period", "fortnight", "--json")
	require.NoError(t, err)
	var rep periodReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, time.Now().AddDate(0, -3, 0).Format("2006-01-02"), rep.Period.From.String())
}

func TestInvalidConfigStopsCommands(t *testing.T) {
	setEnv(t, map[string]string{"DATA_BACKEND": "mongo"})

	_, err := execute(t, "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid data backend 'mongo'")
}

func TestMigrate(t *testing.T) {
	t.Run("sqlite up and down", func(t *testing.T) {
		setEnv(t, map[string]string{
			"DATA_BACKEND":   "sqlite",
			"SQLITE_DB_PATH": filepath.Join(t.TempDir(), "finboard.db"),
		})
		_, err := execute(t, "migrate")
		require.NoError(t, err)
		_, err = execute(t, "migrate", "up")
		require.NoError(t, err, "re-running is a no-op")
		_, err = execute(t, "migrate", "down")
		require.NoError(t, err)
	})

	t.Run("memory has no schema", func(t *testing.T) {
		setEnv(t, nil)
		_, err := execute(t, "migrate")
		assert.ErrorContains(t, err, "no schema to migrate")
	})

	t.Run("unknown direction", func(t *testing.T) {
		setEnv(t, nil)
		_, err := execute(t, "migrate", "sideways")
		assert.Error(t, err)
	})
}

func TestWorkerNeedsBrokerOrOwner(t *testing.T) {
	setEnv(t, map[string]string{"FINBOARD_OWNER_ID": ""})

	_, err := execute(t, "worker")
	assert.ErrorIs(t, err, errNothingToDo)
}

func TestBuildReport(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	fallback := memory.New(memory.WithClock(func() time.Time { return now }),
		memory.WithOwnerResolver(auth.NewStatic("user_1", "")))
	data := dataservice.New(nil, fallback)

	rep, err := buildReport(context.Background(), data, "1month", now)
	require.NoError(t, err)
	assert.Equal(t, "1406.27", rep.Totals.Expenses.StringFixed(2))
	require.NotEmpty(t, rep.Categories)
	assert.Equal(t, "Moradia", rep.Categories[0].Name)
	require.Len(t, rep.Reminders.Upcoming, 1)

	var out bytes.Buffer
	require.NoError(t, printReport(&out, rep))
	assert.Contains(t, out.String(), "1406.27")
	assert.Contains(t, out.String(), "to today")
}
