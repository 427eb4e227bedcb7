package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

var (
	taskPayload    []string
	taskJSON       bool
	taskListStatus string
	taskListKind   string
	taskListTarget string
	taskListLimit  int
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect and manage pipeline tasks",
}

var taskSubmitCmd = &cobra.Command{
	Use:   "submit [kind] [target]",
	Short: "Submit a task",
	Long: `Durably enqueues a task for a record GUID.

Kinds: reindex, resolve, feed.register`,
	Args: cobra.ExactArgs(2),
	RunE: runTaskSubmit,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id]",
	Short: "Show the state of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskStatus,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Cancel a pending task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [guid]",
	Short: "Re-run conflict resolution for a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	taskSubmitCmd.Flags().StringArrayVarP(&taskPayload, "payload", "p", nil, "payload entry as key=value (repeatable)")
	taskStatusCmd.Flags().BoolVar(&taskJSON, "json", false, "output task as JSON")
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "filter by status (pending, running, done, failed)")
	taskListCmd.Flags().StringVar(&taskListKind, "kind", "", "filter by kind")
	taskListCmd.Flags().StringVar(&taskListTarget, "target", "", "filter by target GUID")
	taskListCmd.Flags().IntVarP(&taskListLimit, "limit", "n", 20, "maximum number of tasks")

	taskCmd.AddCommand(taskSubmitCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskCancelCmd)
	taskCmd.AddCommand(taskListCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(resolveCmd)
}

func requireTaskService() error {
	if taskService == nil {
		return errors.New("task service not configured")
	}
	return nil
}

func parsePayload(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	payload := make(map[string]string, len(entries))
	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: payload entry %q is not key=value", domain.ErrInvalidInput, e)
		}
		payload[k] = v
	}
	return payload, nil
}

func runTaskSubmit(cmd *cobra.Command, args []string) error {
	if err := requireTaskService(); err != nil {
		return err
	}
	payload, err := parsePayload(taskPayload)
	if err != nil {
		return err
	}

	id, err := taskService.SubmitTask(commandContext(cmd), domain.TaskKind(args[0]), args[1], payload)
	if err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	cmd.Printf("Submitted task %s\n", id)
	return nil
}

func runTaskStatus(cmd *cobra.Command, args []string) error {
	if err := requireTaskService(); err != nil {
		return err
	}

	task, err := taskService.TaskStatus(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if taskJSON {
		data, err := json.MarshalIndent(task, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal task: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Task:      %s\n", task.ID)
	cmd.Printf("Kind:      %s\n", task.Kind)
	cmd.Printf("Target:    %s\n", task.Target)
	cmd.Printf("Status:    %s\n", task.Status)
	cmd.Printf("Attempts:  %d/%d\n", task.Attempts, task.MaxAttempts)
	if task.LastError != "" {
		cmd.Printf("Error:     %s\n", task.LastError)
	}
	if task.Status == domain.TaskPending && !task.NotBefore.IsZero() {
		cmd.Printf("Next try:  %s\n", task.NotBefore.Local().Format(time.RFC3339))
	}
	cmd.Printf("Updated:   %s\n", task.UpdatedAt.Local().Format(time.RFC3339))
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	if err := requireTaskService(); err != nil {
		return err
	}

	if err := taskService.CancelTask(commandContext(cmd), args[0]); err != nil {
		if errors.Is(err, domain.ErrTaskNotPending) {
			return fmt.Errorf("task %s is no longer pending", args[0])
		}
		return fmt.Errorf("cancel failed: %w", err)
	}
	cmd.Printf("Cancelled task %s\n", args[0])
	return nil
}

func runTaskList(cmd *cobra.Command, _ []string) error {
	if err := requireTaskService(); err != nil {
		return err
	}
	ctx := commandContext(cmd)

	tasks, err := taskService.ListTasks(ctx, domain.TaskFilter{
		Status: domain.TaskStatus(taskListStatus),
		Kind:   domain.TaskKind(taskListKind),
		Target: taskListTarget,
		Limit:  taskListLimit,
	})
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	stats, err := taskService.QueueStats(ctx)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	cmd.Printf("Queue: %d pending, %d running, %d done, %d failed\n",
		stats.Pending, stats.Running, stats.Done, stats.Failed)
	if len(tasks) == 0 {
		cmd.Println("No tasks.")
		return nil
	}
	cmd.Println()
	for i := range tasks {
		t := &tasks[i]
		cmd.Printf("  %s  %-8s %-13s %s", t.ID, t.Status, t.Kind, t.Target)
		if t.LastError != "" {
			cmd.Printf("  (%s)", t.LastError)
		}
		cmd.Println()
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	if err := requireTaskService(); err != nil {
		return err
	}

	id, err := taskService.TriggerResolve(commandContext(cmd), domain.GUID(args[0]))
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}
	cmd.Printf("Submitted resolve task %s\n", id)
	return nil
}
