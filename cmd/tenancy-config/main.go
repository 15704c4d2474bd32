package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tenancy "github.com/prashantrr143/bhoomi-tenancy"
	"github.com/prashantrr143/bhoomi-tenancy/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "check":
		handleCheck()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("tenancy-config - Configuration tool for bhoomi-tenancy")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  tenancy-config convert <input> <output>                    - Convert between formats")
	fmt.Println("  tenancy-config validate <file>                             - Validate configuration")
	fmt.Println("  tenancy-config stats <file>                                - Show configuration statistics")
	fmt.Println("  tenancy-config check <file> <principal> <account> <action> [<resource>] - Evaluate one permission")
	fmt.Println()
	fmt.Println("Supported formats: .tenancy, .yaml, .yml, .json, .bin")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: tenancy-config convert <input> <output>")
		os.Exit(1)
	}

	inputFile := os.Args[2]
	outputFile := os.Args[3]

	cfg, err := loadConfig(inputFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := saveConfig(cfg, outputFile); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Converted %s -> %s\n", inputFile, outputFile)

	inStat, _ := os.Stat(inputFile)
	outStat, _ := os.Stat(outputFile)
	if inStat != nil && outStat != nil {
		reduction := (1 - float64(outStat.Size())/float64(inStat.Size())) * 100
		if reduction > 0 {
			fmt.Printf("Size reduced by %.1f%% (%d -> %d bytes)\n",
				reduction, inStat.Size(), outStat.Size())
		} else {
			fmt.Printf("Size increased by %.1f%% (%d -> %d bytes)\n",
				-reduction, inStat.Size(), outStat.Size())
		}
	}
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: tenancy-config validate <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Version: %d\n", cfg.Version)
	fmt.Printf("  Organizations: %d\n", len(cfg.Organizations))
	fmt.Printf("  Roots: %d\n", len(cfg.Roots))
	fmt.Printf("  Units: %d\n", len(cfg.Units))
	fmt.Printf("  Accounts: %d\n", len(cfg.Accounts))
	fmt.Printf("  Members: %d\n", len(cfg.Members))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: tenancy-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	stat, _ := os.Stat(filename)

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat != nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Printf("Version: %d\n", cfg.Version)
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Organizations: %d\n", len(cfg.Organizations))
	fmt.Printf("  Roots:         %d\n", len(cfg.Roots))
	fmt.Printf("  Units:         %d\n", len(cfg.Units))
	fmt.Printf("  Accounts:      %d\n", len(cfg.Accounts))
	fmt.Printf("  Members:       %d\n", len(cfg.Members))
	fmt.Println()

	if len(cfg.Members) > 0 {
		allowCount := 0
		denyCount := 0
		defaults := 0
		roles := make(map[tenancy.Role]int)
		for _, m := range cfg.Members {
			roles[m.Role]++
			if m.IsDefault {
				defaults++
			}
			for _, stmt := range m.Permissions {
				if stmt.Effect == tenancy.EffectAllow {
					allowCount++
				} else {
					denyCount++
				}
			}
		}
		fmt.Println("Membership Details:")
		fmt.Printf("  Allow statements: %d\n", allowCount)
		fmt.Printf("  Deny statements:  %d\n", denyCount)
		fmt.Printf("  Default accounts: %d\n", defaults)
		for role, n := range roles {
			fmt.Printf("  Role %-20s %d\n", string(role)+":", n)
		}
		fmt.Println()
	}

	fmt.Println("Session Configuration:")
	fmt.Printf("  Decision cache TTL:     %dms\n", cfg.Session.DecisionCacheTTL)
	fmt.Printf("  Ristretto num counters: %d\n", cfg.Session.RistrettoNumCounter)
	fmt.Printf("  Ristretto max cost:     %d\n", cfg.Session.RistrettoMaxCost)
	fmt.Printf("  Ristretto buffer items: %d\n", cfg.Session.RistrettoBuffer)
}

func handleCheck() {
	if len(os.Args) < 6 {
		fmt.Println("Usage: tenancy-config check <file> <principal> <account> <action> [<resource>]")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	store := stores.NewMemoryOrgStore()
	ctx := context.Background()
	if err := cfg.Apply(ctx, store); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	req := &tenancy.CheckRequest{
		PrincipalID: os.Args[3],
		AccountID:   os.Args[4],
		Action:      os.Args[5],
	}
	if len(os.Args) > 6 {
		req.Resource = os.Args[6]
	}

	decision, err := tenancy.Check(ctx, store, req)
	if err != nil {
		fmt.Printf("Check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Verdict: %s\n", decision.Verdict)
	fmt.Printf("Reason:  %s\n", decision.Reason)
	if decision.MatchedIndex >= 0 {
		fmt.Printf("Matched statement index: %d\n", decision.MatchedIndex)
	}
	if !decision.Allowed() {
		os.Exit(2)
	}
}

func loadConfig(filename string) (*tenancy.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".tenancy":
		parser := tenancy.NewDSLParser()
		return parser.Parse(data)
	case ".yaml", ".yml":
		loader := tenancy.NewConfigLoader()
		return loader.LoadYAML(data)
	case ".json":
		loader := tenancy.NewConfigLoader()
		return loader.LoadJSON(data)
	case ".bin":
		loader := tenancy.NewConfigLoader()
		return loader.LoadBinary(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func saveConfig(cfg *tenancy.Config, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	var data []byte
	var err error

	switch ext {
	case ".tenancy":
		encoder := tenancy.NewDSLEncoder()
		data, err = encoder.Encode(cfg)
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	case ".bin":
		data, err = tenancy.EncodeBinaryConfig(cfg)
	default:
		return fmt.Errorf("unsupported file format: %s", ext)
	}

	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
