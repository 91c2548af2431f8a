package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dgallion1/synthtune/internal/artifacts"
	"github.com/dgallion1/synthtune/internal/config"
	"github.com/dgallion1/synthtune/internal/dataset"
	"github.com/dgallion1/synthtune/internal/pipeline"
	"github.com/dgallion1/synthtune/internal/qagen"
	"github.com/dgallion1/synthtune/internal/segment"
	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate question/answer pairs for every segment",
		Long: `Generate validated question/answer pairs from a segments file.

Each segment is split into prompt windows. For every window the LLM writes
questions, then two answers per question. Pairs whose answers are too short,
look like prompt injection, or drift from the source text are dropped.

Example:
  synthtune generate --segments segments.json --out qa_pairs.jsonl --questions 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			segPath, _ := cmd.Flags().GetString("segments")
			out, _ := cmd.Flags().GetString("out")
			questions, _ := cmd.Flags().GetInt("questions")
			threshold, _ := cmd.Flags().GetFloat64("threshold")

			if segPath == "" || out == "" {
				return fmt.Errorf("--segments and --out flags are required")
			}
			log := newLogger(cmd)
			cfg := config.Load()

			table, err := segment.LoadTable(segPath)
			if err != nil {
				return err
			}
			clients, err := pipeline.NewClients(cfg)
			if err != nil {
				return err
			}
			defer clients.Close()

			genCfg := pipeline.SettingsFromConfig(cfg).Generate
			if cmd.Flags().Changed("questions") {
				genCfg.Questions = questions
			}
			if cmd.Flags().Changed("threshold") {
				genCfg.Threshold = threshold
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()

			gen := qagen.NewGenerator(clients.Generator, clients.Scorer, genCfg, log)
			gen.OnSegment = func(title string, o qagen.Outcome) {
				log.Info("segment done", "title", title, "valid", o.Valid, "rejected", o.Rejected)
			}
			records, outcome, err := gen.GenerateAll(cmd.Context(), table.Segments(), func(r dataset.Record) error {
				return dataset.AppendJSONL(f, r)
			})
			if err != nil {
				return err
			}
			for _, e := range outcome.Errors {
				fmt.Fprintf(os.Stderr, "  - %s\n", e)
			}
			fmt.Fprintf(os.Stderr, "%d pair(s) written to %s (%d question(s), %d rejected, %d failed segment(s))\n",
				len(records), out, outcome.Questions, outcome.Rejected, outcome.FailedSegments)
			fmt.Fprintf(os.Stderr, "llm: %+v\n", clients.Stats.Snapshot())
			if len(records) == 0 {
				return fmt.Errorf("no question/answer pair passed validation")
			}
			return nil
		},
	}

	cmd.Flags().StringP("segments", "s", "", "Segments file written by the segment command")
	cmd.Flags().StringP("out", "o", "", "Output question/answer JSONL file")
	cmd.Flags().IntP("questions", "n", 5, "Questions per prompt window")
	cmd.Flags().Float64("threshold", qagen.DefaultThreshold, "Minimum answer similarity to the source text")
	return cmd
}

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Turn question/answer pairs into train/val/test splits",
		Long: `Convert question/answer pairs into prompt/completion examples and split them.

The better-grounded answer of each pair becomes the completion. The shuffle
is seeded, so the same input and seed always give the same splits.

Example:
  synthtune split --in qa_pairs.jsonl --out-dir data/
  synthtune split --in qa_pairs.jsonl --out-dir data/ --score-key helpfulness --min-score 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			outDir, _ := cmd.Flags().GetString("out-dir")
			seed, _ := cmd.Flags().GetUint64("seed")
			train, _ := cmd.Flags().GetFloat64("train")
			val, _ := cmd.Flags().GetFloat64("val")
			scoreKey, _ := cmd.Flags().GetString("score-key")
			minScore, _ := cmd.Flags().GetFloat64("min-score")

			if in == "" || outDir == "" {
				return fmt.Errorf("--in and --out-dir flags are required")
			}
			f, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("open %s: %w", in, err)
			}
			records, err := dataset.ReadRecords(f)
			f.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			if scoreKey != "" {
				before := len(records)
				records = dataset.FilterByScore(records, scoreKey, minScore)
				fmt.Fprintf(os.Stderr, "%d of %d pair(s) kept with %s >= %g\n", len(records), before, scoreKey, minScore)
			}

			examples := dataset.ToExamples(records)
			splits, err := dataset.Split(examples, dataset.Ratios{Train: train, Val: val}, seed)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}
			for _, part := range []struct {
				name     string
				examples []dataset.Example
			}{
				{pipeline.ArtifactTrain, splits.Train},
				{pipeline.ArtifactVal, splits.Val},
				{pipeline.ArtifactTest, splits.Test},
			} {
				var buf bytes.Buffer
				if err := dataset.WriteJSONL(&buf, part.examples); err != nil {
					return err
				}
				path := filepath.Join(outDir, part.name)
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				fmt.Fprintf(os.Stderr, "%s: %d example(s)\n", path, len(part.examples))
			}
			return writeJSON(os.Stdout, dataset.Analyze(examples))
		},
	}

	cmd.Flags().StringP("in", "i", "", "Question/answer JSONL file")
	cmd.Flags().StringP("out-dir", "o", "", "Directory for train.jsonl, val.jsonl and test.jsonl")
	cmd.Flags().Uint64("seed", 42, "Shuffle seed")
	cmd.Flags().Float64("train", dataset.DefaultRatios.Train, "Train share")
	cmd.Flags().Float64("val", dataset.DefaultRatios.Val, "Validation share; test takes the rest")
	cmd.Flags().String("score-key", "", "Reward attribute to filter on (e.g. helpfulness)")
	cmd.Flags().Float64("min-score", 0, "Minimum reward score of the best answer")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check that JSONL files are valid prompt/completion datasets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				n, err := dataset.ValidateJSONL(f)
				f.Close()
				if err != nil {
					failed++
					fmt.Printf("%s: invalid: %v\n", path, err)
					continue
				}
				fmt.Printf("%s: ok (%d example(s))\n", path, n)
			}
			if failed > 0 {
				return fmt.Errorf("%d file(s) failed validation", failed)
			}
			return nil
		},
	}
}

func estimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the token count and cost of fine-tuning",
		Long: `Estimate fine-tuning tokens and cost from the train and validation files.

Tokens are counted as whitespace-separated words.

Example:
  synthtune estimate --train data/train.jsonl --val data/val.jsonl --price 0.0001`,
		RunE: func(cmd *cobra.Command, args []string) error {
			train, _ := cmd.Flags().GetString("train")
			val, _ := cmd.Flags().GetString("val")
			price, _ := cmd.Flags().GetFloat64("price")

			if train == "" {
				return fmt.Errorf("--train flag is required")
			}
			var readers []io.Reader
			for _, path := range []string{train, val} {
				if path == "" {
					continue
				}
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("open %s: %w", path, err)
				}
				defer f.Close()
				readers = append(readers, f)
			}
			est, err := dataset.EstimateCost(price, readers...)
			if err != nil {
				return err
			}
			fmt.Printf("Estimated tokens: %d\n", est.Tokens)
			fmt.Printf("Estimated cost:   $%.4f\n", est.Cost)
			return nil
		},
	}

	cmd.Flags().String("train", "", "Training JSONL file")
	cmd.Flags().String("val", "", "Validation JSONL file")
	cmd.Flags().Float64("price", dataset.DefaultPricePerToken, "Price per token")
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline on one handbook",
		Long: `Parse, segment, generate and split a handbook in one process.

Artifacts are written to <out-dir>/<job id>/. Without --segment-only the
configured LLM provider is required.

Example:
  synthtune run --file handbook.pdf --toc toc.json --out-dir artifacts/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			tocPath, _ := cmd.Flags().GetString("toc")
			outDir, _ := cmd.Flags().GetString("out-dir")
			segmentOnly, _ := cmd.Flags().GetBool("segment-only")
			questions, _ := cmd.Flags().GetInt("questions")

			if file == "" {
				return fmt.Errorf("--file flag is required")
			}
			log := newLogger(cmd)
			cfg := config.Load()
			settings, err := segmentSettings(cmd, pipeline.SettingsFromConfig(cfg))
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			h, err := loadTOC(tocPath)
			if err != nil {
				return err
			}

			var clients *pipeline.Clients
			if !segmentOnly {
				clients, err = pipeline.NewClients(cfg)
				if err != nil {
					return err
				}
				defer clients.Close()
			}
			if outDir == "" {
				outDir = cfg.ArtifactDir
			}
			store, err := artifacts.NewLocalStore(outDir)
			if err != nil {
				return err
			}

			job := pipeline.NewJob(filepath.Base(file), data, h, pipeline.JobOptions{
				SegmentOnly: segmentOnly,
				Questions:   questions,
			})
			pipeline.NewWorker(clients, store, settings, log).Process(cmd.Context(), job)

			snap := job.Snapshot()
			if err := writeJSON(os.Stdout, snap); err != nil {
				return err
			}
			if snap.Status == pipeline.StatusFailed {
				return fmt.Errorf("job failed in phase %s", snap.Phase)
			}
			return nil
		},
	}

	cmd.Flags().StringP("file", "f", "", "Handbook to process")
	cmd.Flags().StringP("toc", "t", "", "Title hierarchy file (JSON or YAML)")
	cmd.Flags().StringP("out-dir", "o", "", "Artifact directory (default ARTIFACT_DIR)")
	cmd.Flags().Bool("segment-only", false, "Stop after writing segments.json")
	cmd.Flags().IntP("questions", "n", 0, "Questions per prompt window (default QUESTIONS_PER_SEGMENT)")
	addSegmentFlags(cmd)
	return cmd
}
