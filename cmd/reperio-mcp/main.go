package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

// reperio-mcp exposes the job corpus to MCP clients over stdio. It opens the
// store read-only in spirit: every tool is a query, nothing mutates. Run it
// against a store the server is not holding open.
func main() {
	configPath := os.Getenv("REPERIO_CONFIG")
	if configPath == "" {
		configPath = "reperio.toml"
	}

	var configFiles []string
	if _, err := os.Stat(configPath); err == nil {
		configFiles = append(configFiles, configPath)
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal console logger at warn so stdio stays clean for the protocol.
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	storageManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	mcpServer := server.NewMCPServer(
		"reperio",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchJobsTool(), handleSearchJobs(storageManager, logger))
	mcpServer.AddTool(createGetJobTool(), handleGetJob(storageManager, logger))
	mcpServer.AddTool(createListCompaniesTool(), handleListCompanies(storageManager, logger))
	mcpServer.AddTool(createGetCompanyTool(), handleGetCompany(storageManager, logger))
	mcpServer.AddTool(createPipelineStatusTool(), handlePipelineStatus(storageManager, logger))

	// Blocks on stdio until the client disconnects.
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
