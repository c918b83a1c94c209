package logger_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/puzzlekit/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestLevels(t *testing.T) {
	t.Log("Given the need to filter log entries by level.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen logging at warn level.", testID)
		{
			path := filepath.Join(t.TempDir(), "log.json")

			log, err := logger.NewAt("TEST", "warn", path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the logger: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to construct the logger.", success, testID)

			log.Infow("dropped")
			log.Warnw("kept", "key", "value")
			log.Sync()

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the log: %v", failed, testID, err)
			}

			lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
			if len(lines) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould write a single entry: %d", failed, testID, len(lines))
			}
			t.Logf("\t%s\tTest %d:\tShould write a single entry.", success, testID)

			var entry map[string]any
			if err := json.Unmarshal(lines[0], &entry); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould write json: %v", failed, testID, err)
			}

			if entry["service"] != "TEST" || entry["msg"] != "kept" {
				t.Fatalf("\t%s\tTest %d:\tShould carry the service and message: %v", failed, testID, entry)
			}
			t.Logf("\t%s\tTest %d:\tShould carry the service and message.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen asking for an unknown level.", testID)
		{
			if _, err := logger.NewAt("TEST", "loud"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to construct the logger.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould fail to construct the logger.", success, testID)
		}
	}
}
