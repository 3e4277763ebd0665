package main

import (
	"log/slog"

	"github.com/mdgraph/mdgraph/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    mdgraph Colored Logger Demo")
	log.Info("============================================")
	log.Info("")

	log.Debug("Debug message - gray")
	log.Info("Info message - standard color")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("")
	log.Info("Attributes are dimmed for readability:")
	log.Info("Indexing document", "filepath", "guides/setup.md", "sections", 4)
	log.Info("Embeddings stored", "count", 42, "duration", "2.5s")
	log.Info("Dangling links resolved", "count", 7)

	log.Info("")
	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")

	log.Info("")
	log.Info("Demo complete!")
}
