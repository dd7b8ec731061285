package commands

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/discgraph/internal/printer"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger answers getProgramAccounts and getHealth like a Solana RPC node.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[string][]map[string]any
	calls    int
}

func (f *fakeLedger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params []json.RawMessage
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch req.Method {
	case "getHealth":
		resp["result"] = "ok"
	case "getProgramAccounts":
		f.calls++
		var pid string
		if len(req.Params) > 0 {
			json.Unmarshal(req.Params[0], &pid)
		}
		accts := f.accounts[pid]
		if accts == nil {
			accts = []map[string]any{}
		}
		resp["result"] = accts
	default:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeLedger) add(programID, pubkey string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accounts == nil {
		f.accounts = make(map[string][]map[string]any)
	}
	f.accounts[programID] = append(f.accounts[programID], map[string]any{
		"pubkey": pubkey,
		"account": map[string]any{
			"data":     []string{base64.StdEncoding.EncodeToString(data), "base64"},
			"owner":    programID,
			"lamports": 1,
		},
	})
}

type cliEnv struct {
	mr        *miniredis.Miniredis
	ledger    *fakeLedger
	ledgerSrv *httptest.Server
	config    string
}

// setupCLI starts miniredis and a fake ledger and writes a config pointing at both.
// extra is appended to the YAML verbatim.
func setupCLI(t *testing.T, extra string) *cliEnv {
	t.Helper()
	mr := miniredis.RunT(t)

	fl := &fakeLedger{}
	srv := httptest.NewServer(fl)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "discgraph.yml")
	yml := fmt.Sprintf(`version: "1.0"
namespace: cli-test
redis:
  url: redis://%s/0
ledger:
  endpoint: %s
  commitment: confirmed
  timeout: 5s
reconciler:
  interval: 1h
  discover_from_store: true
log:
  level: error
%s`, mr.Addr(), srv.URL, extra)
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	return &cliEnv{mr: mr, ledger: fl, ledgerSrv: srv, config: path}
}

// runCLI executes the root command with args and returns what the printer wrote.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	printer.SetOutput(&out, &errOut)
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		printer.SetOutput(os.Stdout, os.Stderr)
		color.NoColor = noColor
	})

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), errOut.String(), err
}

// resetFlags restores every flag to its default, since commands are package globals.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func record(disc, instr []byte) []byte {
	return append(append([]byte{}, disc...), instr...)
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, _, err := runCLI(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "discgraph")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, _, err := runCLI(t, "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestDecodeCommand(t *testing.T) {
	t.Run("hex with default layout", func(t *testing.T) {
		out, _, err := runCLI(t, "decode", "0102030405060708aabb")
		require.NoError(t, err)
		assert.Contains(t, out, "discriminator: 0102030405060708\n")
		assert.Contains(t, out, "instruction: aabb\n")
	})

	t.Run("base64 with layout override and keys", func(t *testing.T) {
		data := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4, 5})
		out, _, err := runCLI(t, "decode", data, "--base64", "--header-len", "2", "--payload-len", "1", "--program", "P1")
		require.NoError(t, err)
		assert.Contains(t, out, "discriminator: 0102\n")
		assert.Contains(t, out, "instruction: 03\n")
		assert.Contains(t, out, "key:")
		assert.Contains(t, out, "P1:")
	})

	t.Run("too short", func(t *testing.T) {
		_, errOut, err := runCLI(t, "decode", "0102")
		require.Error(t, err)
		assert.Equal(t, "malformed record", err.Error())
		assert.Contains(t, errOut, "at least 8 bytes")
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, _, err := runCLI(t, "decode", "zz")
		require.Error(t, err)
		assert.Equal(t, "invalid record data", err.Error())
	})
}

func TestConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, errOut, err := runCLI(t, "programs", "--config", filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
		assert.Equal(t, "failed to load configuration", err.Error())
		assert.Contains(t, errOut, "failed to read config")
	})

	t.Run("invalid value", func(t *testing.T) {
		env := setupCLI(t, "query:\n  batch_policy: sometimes\n")
		_, errOut, err := runCLI(t, "programs", "--config", env.config)
		require.Error(t, err)
		assert.Equal(t, "invalid configuration", err.Error())
		assert.Contains(t, errOut, "query.batch_policy")
	})

	t.Run("redis unreachable", func(t *testing.T) {
		env := setupCLI(t, "")
		env.mr.Close()
		_, _, err := runCLI(t, "programs", "--config", env.config)
		require.Error(t, err)
		assert.Equal(t, "Redis connection failed", err.Error())
	})
}

func TestIngestThenQuery(t *testing.T) {
	env := setupCLI(t, "")

	out, _, err := runCLI(t, "ingest", "P1",
		"--discriminator", "0102030405060708",
		"--instruction", "0x0a0b0c",
		"--user", "alice",
		"--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ingested discriminator for program 'P1'")
	assert.Contains(t, out, "key:")

	out, _, err = runCLI(t, "query", "P1", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "Discriminators for program 'P1':")
	assert.Contains(t, out, "0102030405060708")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "1 discriminator found")
	assert.Equal(t, 0, env.ledger.calls, "graph hit must not reach the ledger")

	out, _, err = runCLI(t, "programs", "--config", env.config)
	require.NoError(t, err)
	assert.Equal(t, "P1\n\n1 program found\n", out)
}

func TestQuery_FillsFromLedger(t *testing.T) {
	env := setupCLI(t, "")
	env.ledger.add("P9", "owner1", record([]byte{9, 9, 9, 9, 9, 9, 9, 9}, []byte{0xde, 0xad}))
	env.ledger.add("P9", "owner2", []byte{1, 2})

	out, _, err := runCLI(t, "query", "P9", "-o", "jsonl", "--config", env.config)
	require.NoError(t, err)

	var view map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(out)), &view))
	assert.Equal(t, "0909090909090909", view["discriminator"])
	assert.Equal(t, "dead", view["instruction"])
	assert.Equal(t, "owner1", view["contributor"])
	assert.Equal(t, 1, env.ledger.calls)

	out, _, err = runCLI(t, "instructions", view["key"], "-o", "json", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, `"instruction": "dead"`)
}

func TestQuery_NotFound(t *testing.T) {
	env := setupCLI(t, "")

	_, errOut, err := runCLI(t, "query", "P404", "--config", env.config)
	require.Error(t, err)
	assert.Equal(t, "nothing found for 'P404'", err.Error())
	assert.Contains(t, errOut, "Neither the graph nor the ledger")
}

func TestQuery_InvalidOutput(t *testing.T) {
	_, _, err := runCLI(t, "query", "P1", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())
}

func TestIngest_InvalidHex(t *testing.T) {
	_, _, err := runCLI(t, "ingest", "P1", "--discriminator", "xyz", "--instruction", "00", "--user", "u")
	require.Error(t, err)
	assert.Equal(t, "invalid --discriminator", err.Error())
}

func TestProvisionCommand(t *testing.T) {
	env := setupCLI(t, "")

	out, _, err := runCLI(t, "provision", "--check", "--config", env.config)
	require.NoError(t, err)
	assert.Regexp(t, `Programs\s+node\s+missing`, out)

	out, _, err = runCLI(t, "provision", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "→ provisioning 7 collections in namespace 'cli-test'")
	assert.Regexp(t, `Programs\s+node\s+ready\s+0`, out)
	assert.Regexp(t, `MappedTo\s+edge\s+ready\s+0`, out)
}

func TestReconcileOnce(t *testing.T) {
	env := setupCLI(t, "")
	env.ledger.add("P1", "owner1", record([]byte{1, 1, 1, 1, 1, 1, 1, 1}, []byte{0xaa}))

	out, _, err := runCLI(t, "reconcile", "P1", "P2", "--once", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "P1: 1 accounts, 1 ingested, 0 malformed, 0 failed")
	assert.Contains(t, out, "P2: 0 accounts, 0 ingested, 0 malformed, 0 failed")

	out, _, err = runCLI(t, "programs", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, "P1\n")
}

func TestReconcile_NoPrograms(t *testing.T) {
	env := setupCLI(t, "")
	_, _, err := runCLI(t, "reconcile", "--once", "--config", env.config)
	require.Error(t, err)
	assert.Equal(t, "no programs to reconcile", err.Error())
}

func TestServe_LedgerUnreachable(t *testing.T) {
	env := setupCLI(t, "")
	env.ledgerSrv.Close()

	done := make(chan struct{})
	var (
		errOut string
		err    error
	)
	go func() {
		defer close(done)
		_, errOut, err = runCLI(t, "serve", "--addr", "127.0.0.1:0", "--config", env.config)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("serve kept running with an unreachable ledger")
	}
	require.Error(t, err)
	assert.Equal(t, "ledger endpoint unreachable", err.Error())
	assert.Contains(t, errOut, env.ledgerSrv.URL)
	assert.Empty(t, env.mr.Keys(), "nothing may be provisioned before the ledger check")
}

func TestPebbleBackend(t *testing.T) {
	env := setupCLI(t, fmt.Sprintf("store:\n  backend: pebble\n  path: %s\n", filepath.Join(t.TempDir(), "graph")))

	_, _, err := runCLI(t, "ingest", "P1",
		"--discriminator", "0102030405060708",
		"--instruction", "ff",
		"--user", "bob",
		"--config", env.config)
	require.NoError(t, err)

	out, _, err := runCLI(t, "query", "P1", "-o", "json", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, `"contributor": "bob"`)
	assert.Equal(t, 0, env.ledger.calls)
	assert.Empty(t, env.mr.Keys(), "pebble backend must not touch redis")
}

func TestInstructions_ShortKey(t *testing.T) {
	env := setupCLI(t, "")
	env.ledger.add("P1", "owner1", record([]byte{7, 7, 7, 7, 7, 7, 7, 7}, []byte{0xbe, 0xef}))

	out, _, err := runCLI(t, "query", "P1", "-o", "jsonl", "--config", env.config)
	require.NoError(t, err)
	var view map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace([]byte(out)), &view))
	short := view["key"][len("P1:"):][:8]

	out, _, err = runCLI(t, "instructions", short, "--program", "P1", "--config", env.config)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Instructions for discriminator '%s':", short))
	assert.Contains(t, out, "beef")

	_, _, err = runCLI(t, "instructions", short, "--config", env.config)
	require.Error(t, err)
	assert.Equal(t, "cannot resolve key", err.Error())

	_, _, err = runCLI(t, "instructions", "00000000", "--program", "P1", "--config", env.config)
	require.Error(t, err)
	assert.Equal(t, "discriminator '00000000' not found", err.Error())
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()

	out, _, err := runCLI(t, "init", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ created "+filepath.Join(dir, "discgraph.yml"))

	_, _, err = runCLI(t, "init", "--dir", dir)
	require.Error(t, err)
	assert.Equal(t, "already initialized", err.Error())

	_, _, err = runCLI(t, "init", "--dir", dir, "--force")
	require.NoError(t, err)
}
