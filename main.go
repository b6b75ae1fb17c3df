// =============================================================================
// Invoice Batch Import - Main Entry Point
// =============================================================================
//
// USAGE:
//   invoice-import import [files...]  - Import line-item files and print reports
//   invoice-import serve              - Run the HTTP upload endpoint and inbox job
//   invoice-import version            - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : The import pipeline, stores and transports
//   - pkg/utils/ : Inbox file management
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/invoice-batch-import/cmd"
)

func main() {
	cmd.Execute()
}
