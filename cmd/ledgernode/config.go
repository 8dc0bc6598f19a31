// Command ledgernode runs the block ingestion pipeline as a standalone
// process, configured via TOML file and/or CLI flags.
//
// Adapted from the teacher's cmd/berith/config.go: the same
// NormFieldName/FieldToKey-identity toml.Config (so TOML keys match Go
// struct field names verbatim), the same load-defaults-then-file-then-
// flags layering, and the same dumpconfig command shape.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/naoina/toml"
	cli "gopkg.in/urfave/cli.v1"

	"ledgercore/node"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}

	batchMaxTimeFlag = cli.DurationFlag{
		Name:  "block_processor_batch_max_time",
		Usage: "block-processor batch time budget (stored in the config; batches are bounded by block_processor_batch_size only)",
	}
	batchSizeFlag = cli.IntFlag{
		Name:  "block_processor_batch_size",
		Usage: "maximum number of blocks per block-processor batch",
	}
	fullSizeFlag = cli.IntFlag{
		Name:  "block_processor_full_size",
		Usage: "backlog depth at which the block processor reports itself full",
	}
	verificationSizeFlag = cli.IntFlag{
		Name:  "block_processor_verification_size",
		Usage: "worker count for the signature-verification pool (values outside 1-32 fall back to 4)",
	}
	disableRepublishingFlag = cli.BoolFlag{
		Name:  "disable_block_processor_republishing",
		Usage: "do not rebroadcast blocks the processor confirms",
	}
	disableUncheckedDeletionFlag = cli.BoolFlag{
		Name:  "disable_block_processor_unchecked_deletion",
		Usage: "keep unchecked (gapped) entries instead of deleting them once resolved",
	}
	timingLoggingFlag = cli.BoolFlag{
		Name:  "timing_logging",
		Usage: "log the block-processor batch time budget when the node starts",
	}
	ledgerLoggingFlag = cli.BoolFlag{
		Name:  "ledger_logging",
		Usage: "log a startup line with the block-processor batch and full sizes",
	}
	ledgerDuplicateLoggingFlag = cli.BoolFlag{
		Name:  "ledger_duplicate_logging",
		Usage: "stored in the node config; no log line currently depends on it",
	}
)

// nodeFlags is every flag dumpconfig and the run command both accept.
var nodeFlags = []cli.Flag{
	configFileFlag,
	batchMaxTimeFlag,
	batchSizeFlag,
	fullSizeFlag,
	verificationSizeFlag,
	disableRepublishingFlag,
	disableUncheckedDeletionFlag,
	timingLoggingFlag,
	ledgerLoggingFlag,
	ledgerDuplicateLoggingFlag,
}

// tomlSettings makes TOML keys match Go struct field names exactly,
// matching the teacher's identity NormFieldName/FieldToKey convention.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// ledgerConfig mirrors node.Config's field shape so TOML files read
// naturally; it is flattened into a node.Config by applyLedgerConfig.
type ledgerConfig struct {
	BlockProcessorBatchMaxTime             string
	BlockProcessorBatchSize                int
	BlockProcessorFullSize                 int
	BlockProcessorVerificationSize         int
	DisableBlockProcessorRepublishing      bool
	DisableBlockProcessorUncheckedDeletion bool
	TimingLogging                          bool
	LedgerLogging                          bool
	LedgerDuplicateLogging                 bool
}

func loadConfig(file string, cfg *ledgerConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

func defaultLedgerConfig() ledgerConfig {
	d := node.DefaultConfig.BlockProcessor
	return ledgerConfig{
		BlockProcessorBatchMaxTime:     d.BatchMaxTime.String(),
		BlockProcessorBatchSize:        d.BatchSize,
		BlockProcessorFullSize:         d.FullSize,
		BlockProcessorVerificationSize: d.VerificationSize,
	}
}

// applyLedgerConfig flattens the TOML-decoded lc into cfg.BlockProcessor,
// so a file-provided value actually takes effect instead of being
// discarded once defaultLedgerConfig's defaults are overwritten by it.
// CLI flags are applied by the caller afterward and take precedence.
func applyLedgerConfig(cfg *node.Config, lc ledgerConfig) error {
	d, err := time.ParseDuration(lc.BlockProcessorBatchMaxTime)
	if err != nil {
		return fmt.Errorf("block_processor_batch_max_time %q: %v", lc.BlockProcessorBatchMaxTime, err)
	}
	cfg.BlockProcessor.BatchMaxTime = d
	cfg.BlockProcessor.BatchSize = lc.BlockProcessorBatchSize
	cfg.BlockProcessor.FullSize = lc.BlockProcessorFullSize
	cfg.BlockProcessor.VerificationSize = lc.BlockProcessorVerificationSize
	cfg.BlockProcessor.DisableRepublishing = lc.DisableBlockProcessorRepublishing
	cfg.BlockProcessor.DisableUncheckedDeletion = lc.DisableBlockProcessorUncheckedDeletion
	return nil
}

func makeNodeConfig(ctx *cli.Context) node.Config {
	lc := defaultLedgerConfig()

	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &lc); err != nil {
			fatalf("%v", err)
		}
	}

	cfg := node.DefaultConfig
	if err := applyLedgerConfig(&cfg, lc); err != nil {
		fatalf("%v", err)
	}

	if ctx.GlobalIsSet(batchMaxTimeFlag.Name) {
		cfg.BlockProcessor.BatchMaxTime = ctx.GlobalDuration(batchMaxTimeFlag.Name)
	}
	if ctx.GlobalIsSet(batchSizeFlag.Name) {
		cfg.BlockProcessor.BatchSize = ctx.GlobalInt(batchSizeFlag.Name)
	}
	if ctx.GlobalIsSet(fullSizeFlag.Name) {
		cfg.BlockProcessor.FullSize = ctx.GlobalInt(fullSizeFlag.Name)
	}
	if ctx.GlobalIsSet(verificationSizeFlag.Name) {
		cfg.BlockProcessor.VerificationSize = ctx.GlobalInt(verificationSizeFlag.Name)
	}
	if ctx.GlobalIsSet(disableRepublishingFlag.Name) {
		cfg.BlockProcessor.DisableRepublishing = ctx.GlobalBool(disableRepublishingFlag.Name)
	}
	if ctx.GlobalIsSet(disableUncheckedDeletionFlag.Name) {
		cfg.BlockProcessor.DisableUncheckedDeletion = ctx.GlobalBool(disableUncheckedDeletionFlag.Name)
	}
	cfg.TimingLogging = lc.TimingLogging || ctx.GlobalBool(timingLoggingFlag.Name)
	cfg.LedgerLogging = lc.LedgerLogging || ctx.GlobalBool(ledgerLoggingFlag.Name)
	cfg.LedgerDuplicateLogging = lc.LedgerDuplicateLogging || ctx.GlobalBool(ledgerDuplicateLoggingFlag.Name)
	return cfg
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
