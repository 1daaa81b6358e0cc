package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/pgbackuper/internal/models"
)

// BackupStartMessage announces how many databases a pass will dump.
func BackupStartMessage(count int) string {
	return fmt.Sprintf("Dumping %d databases!", count)
}

// RestoreStartMessage announces how many dump files a pass will replay.
func RestoreStartMessage(count int) string {
	return fmt.Sprintf("Restoring %d databases!", count)
}

// SummaryMessage describes a finished pass.
func SummaryMessage(report *models.PassReport) string {
	var b strings.Builder

	verb := "dumped"
	if report.Kind == models.PassRestore {
		verb = "restored"
	}

	var size int64
	for _, o := range report.Outcomes {
		if o.Succeeded() {
			size += o.SizeBytes
		}
	}

	fmt.Fprintf(&b, "%d/%d databases %s in %s", report.Succeeded(), len(report.Outcomes), verb, report.Duration.Round(time.Second))
	if size > 0 {
		fmt.Fprintf(&b, " (%s)", formatBytes(size))
	}
	b.WriteString("!")

	if failed := report.Failed(); len(failed) > 0 {
		fmt.Fprintf(&b, "\nFailed: %s", strings.Join(failed, ", "))
	}

	return b.String()
}
