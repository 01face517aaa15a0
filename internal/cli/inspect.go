package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cartolabel/pkg/errors"
	"github.com/matzehuels/cartolabel/pkg/sink"
)

func (c *CLI) inspectCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "inspect [labels.json]",
		Short: "Browse the labels and skipped features of a result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			if plain {
				printDocument(doc)
				return nil
			}
			_, err = tea.NewProgram(NewLabelsModel(doc), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print a summary instead of the interactive view")
	return cmd
}

func readDocument(path string) (*sink.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	doc, err := sink.ReadJSON(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s", path)
	}
	return doc, nil
}

// printDocument prints the statistics and every skipped feature.
func printDocument(doc *sink.Document) {
	if doc.RunID != "" {
		printKeyValue("Run", doc.RunID)
	}
	printKeyValue("Features", fmt.Sprint(doc.Stats.Features))
	printKeyValue("Placed", fmt.Sprint(doc.Stats.Placed))
	printKeyValue("Candidates", fmt.Sprint(doc.Stats.Candidates))
	printKeyValue("Skipped", fmt.Sprint(doc.Stats.SkippedTotal()))
	for _, s := range doc.Skipped {
		printDetail("%s  %s  %s", s.FeatureID, orDash(s.Text), s.Reason)
	}
}
