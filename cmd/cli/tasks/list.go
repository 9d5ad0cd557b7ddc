package tasks

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/assetflow/internal/taskgraph"
	rootutils "github.com/tyemirov/assetflow/internal/utils/roots"
)

const (
	listCommandUseName          = "tasks [root...]"
	listCommandShortDescription = "List the registered tasks as YAML"
	listCommandLongDescription  = "tasks prints every registered task with its prerequisites, watch inputs and outputs. With roots, only the tasks those roots would run are printed, in execution order."
	listEncodeErrorTemplate     = "tasks.list.encode: %w"
	listIndentation             = 2
)

type taskListing struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	Prerequisites []string `yaml:"prerequisites,omitempty"`
	Inputs        []string `yaml:"inputs,omitempty"`
	Outputs       []string `yaml:"outputs,omitempty"`
	Retries       uint64   `yaml:"retries,omitempty"`
}

// ListCommandBuilder assembles the tasks listing command.
type ListCommandBuilder struct {
	Environment
}

// Build constructs the tasks command.
func (builder *ListCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   listCommandUseName,
		Short: listCommandShortDescription,
		Long:  listCommandLongDescription,
		Args:  cobra.ArbitraryArgs,
		RunE:  builder.run,
	}, nil
}

func (builder *ListCommandBuilder) run(command *cobra.Command, arguments []string) error {
	listSession, sessionError := builder.prepare(command, sessionOptions{cleanPolicy: CleanConfigured, disableRunSummary: true})
	if sessionError != nil {
		return sessionError
	}

	registeredTasks := listSession.registry.Tasks()
	if roots := rootutils.Sanitize(arguments); len(roots) > 0 {
		plannedTasks, planError := listSession.registry.Plan(roots)
		if planError != nil {
			return planError
		}
		registeredTasks = plannedTasks
	}

	encoder := yaml.NewEncoder(command.OutOrStdout())
	encoder.SetIndent(listIndentation)
	if encodeError := encoder.Encode(listingsFor(registeredTasks)); encodeError != nil {
		return fmt.Errorf(listEncodeErrorTemplate, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(listEncodeErrorTemplate, closeError)
	}
	return nil
}

func listingsFor(registeredTasks []taskgraph.Task) []taskListing {
	listings := make([]taskListing, 0, len(registeredTasks))
	for _, task := range registeredTasks {
		listings = append(listings, taskListing{
			Name:          task.Name,
			Description:   task.Description,
			Prerequisites: task.Prerequisites,
			Inputs:        task.Inputs,
			Outputs:       task.Outputs,
			Retries:       task.Retries,
		})
	}
	return listings
}
