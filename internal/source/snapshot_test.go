package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertFile_ReadsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.json")
	payload := `[{"id":"NWS-1","event":"Flood Warning","severity":"Severe","huc8":"02070008"}]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	alerts, err := AlertFile{Path: path}.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "NWS-1", alerts[0].ID)
	assert.Equal(t, "02070008", alerts[0].HUC8)
}

func TestGaugeFile_MissingFile(t *testing.T) {
	_, err := GaugeFile{Path: filepath.Join(t.TempDir(), "nope.json")}.Readings(context.Background())
	assert.Error(t, err)
}

func TestPermitFile_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permits.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := PermitFile{Path: path}.Permits(context.Background())
	assert.Error(t, err)
}
