// Command construct builds and queries flatgo index snapshots from raw
// vector files.
//
// Build an index:
//
//	construct build <quantize:0|1> <metric:0=L2|1=IP> <vectors> <M> <ef_construction> <out>
//
// Query one:
//
//	construct query <index> <metric:0|1> <queries> <k>
//
// Vector files are little-endian: [u32 count][u32 dim][count*dim float32].
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/flatgo"
	"github.com/hupe1980/flatgo/distance"
	"github.com/hupe1980/flatgo/kmeans"
	"github.com/hupe1980/flatgo/quantization"
)

type buildConfig struct {
	NumInitializations int    `yaml:"num_initializations"`
	Reorder            string `yaml:"reorder"` // "", "rcm", "gorder"
	GorderWindow       int    `yaml:"gorder_window"`
	PQSubquantizers    int    `yaml:"pq_subquantizers"`
	PQBits             int    `yaml:"pq_bits"`
	PQTrainIterations  int    `yaml:"pq_train_iterations"`
	EFSearch           int    `yaml:"ef_search"`
}

func defaultConfig() buildConfig {
	return buildConfig{
		NumInitializations: 100,
		GorderWindow:       5,
		PQSubquantizers:    8,
		PQBits:             8,
		PQTrainIterations:  20,
		EFSearch:           100,
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "construct",
		Short:         "Build and query flat navigable graph indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")

	root.AddCommand(newBuildCmd(&configPath))
	root.AddCommand(newQueryCmd(&configPath))
	return root
}

func loadConfig(path string) (buildConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func newBuildCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "build <quantize:0|1> <metric:0=L2|1=IP> <vectors> <M> <ef_construction> <out>",
		Short: "Build an index from a raw vector file",
		Args:  cobra.ExactArgs(6),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			quantize, err := parseBoolFlag(args[0])
			if err != nil {
				return fmt.Errorf("quantize: %w", err)
			}
			metric, err := parseMetric(args[1])
			if err != nil {
				return err
			}
			data, n, dim, err := readMatrix(args[2])
			if err != nil {
				return err
			}
			m, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("M: %w", err)
			}
			efc, err := strconv.Atoi(args[4])
			if err != nil {
				return fmt.Errorf("ef_construction: %w", err)
			}
			out := args[5]

			logger := flatgo.NewTextLogger(slog.LevelInfo)
			logger.Info("loaded dataset", "vectors", n, "dimension", dim)

			opts := []func(o *flatgo.Options){
				flatgo.WithEFConstruction(efc),
				flatgo.WithNumInitializations(cfg.NumInitializations),
				flatgo.WithLogger(logger),
			}

			if quantize {
				pq, err := quantization.New(dim, cfg.PQSubquantizers, cfg.PQBits, metric)
				if err != nil {
					return err
				}
				logger.Info("training product quantizer",
					"subquantizers", cfg.PQSubquantizers, "bits", cfg.PQBits)
				if err := pq.Train(data, func(o *kmeans.Options) {
					o.Iterations = cfg.PQTrainIterations
				}); err != nil {
					return err
				}
				if err := pq.SaveFile(out + ".pq"); err != nil {
					return err
				}
				opts = append(opts, flatgo.WithPQ(pq))
			}

			ix, err := flatgo.Create(metric, dim, n, m, opts...)
			if err != nil {
				return err
			}

			for i := 0; i < n; i++ {
				ok, err := ix.Insert(data[i*dim:(i+1)*dim], uint64(i))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("index full after %d inserts", i)
				}
				if i > 0 && i%10000 == 0 {
					logger.Info("building", "inserted", i)
				}
			}

			switch cfg.Reorder {
			case "":
			case "rcm":
				if err := ix.Reorder(flatgo.StrategyRCM); err != nil {
					return err
				}
			case "gorder":
				if err := ix.Reorder(flatgo.StrategyGorder,
					flatgo.WithGorderWindow(cfg.GorderWindow)); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown reorder strategy %q", cfg.Reorder)
			}

			stats := ix.Stats()
			logger.Info("build complete",
				"nodes", stats.Nodes, "edges", stats.Edges,
				"self_loops", stats.SelfLoops, "arena_bytes", stats.ArenaBytes)

			return ix.Save(out)
		},
	}
}

func newQueryCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "query <index> <metric:0=L2|1=IP> <queries> <k>",
		Short: "Run top-k queries from a raw vector file against an index",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			metric, err := parseMetric(args[1])
			if err != nil {
				return err
			}
			queries, qn, dim, err := readMatrix(args[2])
			if err != nil {
				return err
			}
			k, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("k: %w", err)
			}

			opts := []func(o *flatgo.Options){
				flatgo.WithEFSearch(cfg.EFSearch),
				flatgo.WithNumInitializations(cfg.NumInitializations),
			}
			if pq, pqErr := quantization.LoadFile(args[0] + ".pq"); pqErr == nil {
				opts = append(opts, flatgo.WithPQ(pq))
			}

			ix, err := flatgo.Load(args[0], metric, dim, opts...)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for i := 0; i < qn; i++ {
				results, err := ix.Search(queries[i*dim:(i+1)*dim], k)
				if err != nil {
					return err
				}
				for rank, r := range results {
					fmt.Fprintf(w, "%d\t%d\t%d\t%g\n", i, rank, r.Label, r.Distance)
				}
			}
			return nil
		},
	}
}

func parseBoolFlag(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("want 0 or 1, got %q", s)
	}
}

func parseMetric(s string) (distance.Metric, error) {
	switch s {
	case "0":
		return distance.MetricL2, nil
	case "1":
		return distance.MetricAngular, nil
	default:
		return 0, fmt.Errorf("metric: want 0 (L2) or 1 (inner product), got %q", s)
	}
}

// readMatrix reads a little-endian vector file: [u32 count][u32 dim]
// followed by count*dim float32 values.
func readMatrix(path string) ([]float32, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()

	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	n := int(binary.LittleEndian.Uint32(header[0:]))
	dim := int(binary.LittleEndian.Uint32(header[4:]))
	if n <= 0 || dim <= 0 {
		return nil, 0, 0, fmt.Errorf("read %s: invalid shape %dx%d", path, n, dim)
	}

	raw := make([]byte, n*dim*4)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, 0, 0, fmt.Errorf("read %s: %w", path, err)
	}
	data := make([]float32, n*dim)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return data, n, dim, nil
}
