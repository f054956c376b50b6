package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/annolab/seqlabel/pkg/seqlabel/bio"
)

var (
	splitValRatio float64
	splitSeed     int64
	splitTrainOut string
	splitValOut   string
)

var splitCmd = &cobra.Command{
	Use:   "split <labels.conll>",
	Short: "Split a CoNLL file into train and validation sets",
	Long: `Split reads a labeled CoNLL file, shuffles its records with a fixed seed,
and writes train and validation files. The same seed always produces the
same split.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().Float64Var(&splitValRatio, "val-ratio", 0.1, "fraction of records held out for validation")
	splitCmd.Flags().Int64Var(&splitSeed, "seed", 42, "shuffle seed")
	splitCmd.Flags().StringVar(&splitTrainOut, "train", "train.conll", "train output path")
	splitCmd.Flags().StringVar(&splitValOut, "val", "val.conll", "validation output path")
}

func runSplit(cmd *cobra.Command, args []string) error {
	if splitValRatio < 0 || splitValRatio > 1 {
		return fmt.Errorf("val-ratio must be in [0, 1], got %v", splitValRatio)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	sentences, err := bio.ParseCoNLL(f)
	if err != nil {
		return err
	}

	train, val := bio.SplitSentences(sentences, splitValRatio, splitSeed)
	if err := writeSplit(splitTrainOut, train); err != nil {
		return err
	}
	if err := writeSplit(splitValOut, val); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "train: %d records -> %s\nval:   %d records -> %s\n",
		len(train), splitTrainOut, len(val), splitValOut)
	return nil
}

func writeSplit(path string, sentences []bio.Sentence) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bio.WriteSentences(f, sentences); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
