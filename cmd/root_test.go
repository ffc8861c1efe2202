package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"ingest", "invoice", "destinations", "holidays", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "freight-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"dir", "file", "message-id", "timestamp", "orders-out", "no-orders"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "ingest should have --%s flag", name)
	}
}

func TestInvoiceCommand_Flags(t *testing.T) {
	for _, name := range []string{"year", "month", "xlsx"} {
		flag := invoiceCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "invoice should have --%s flag", name)
	}
	assert.Equal(t, "0", invoiceCmd.Flags().Lookup("month").DefValue)
}

func TestDestinationsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range destinationsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "search", "add", "delete", "import", "export"} {
		assert.True(t, names[name], "destinations should have subcommand %q", name)
	}

	flag := destinationsAddCmd.Flags().Lookup("lead-time")
	require.NotNil(t, flag)
	assert.Equal(t, "D+1", flag.DefValue)
}

func TestHolidaysCommand_Flags(t *testing.T) {
	for _, name := range []string{"year", "from", "days"} {
		assert.NotNil(t, holidaysCmd.Flags().Lookup(name), "holidays should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
