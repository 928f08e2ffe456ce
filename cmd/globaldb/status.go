package main

import (
	"context"
	"fmt"
	"strings"

	"globaldb/pkg/admin"
	"globaldb/pkg/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	primaryColor = lipgloss.Color("#FF79C6")
	accentColor  = lipgloss.Color("#50FA7B")
	warningColor = lipgloss.Color("#FFB86C")
	dangerColor  = lipgloss.Color("#FF5555")
	mutedColor   = lipgloss.Color("#6272A4")
	secondColor  = lipgloss.Color("#8BE9FD")
	bgLightColor = lipgloss.Color("#44475A")
	fgColor      = lipgloss.Color("#F8F8F2")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2).
			MarginBottom(1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(24)

	valueStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondColor).
			Background(bgLightColor).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node health and clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(ctx context.Context, client *admin.Client, cfg *config.ClientConfig) error {
				st, err := client.Status(ctx)
				if err != nil {
					return err
				}
				clusters, err := client.ListClusters(ctx)
				if err != nil {
					return err
				}

				if cfg.OutputFormat == "json" {
					return printJSON(struct {
						Status   *admin.StatusResponse `json:"status"`
						Clusters []admin.ClusterInfo   `json:"clusters"`
					}{st, clusters})
				}

				fmt.Println(createPanel("GlobalDB Node", renderSummary(st, cfg.AdminAddress)))
				if len(clusters) > 0 {
					fmt.Println(renderClusterTable(clusters))
				}
				return nil
			})
		},
	}
}

func createPanel(title, content string) string {
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}

func healthStyle(score float64) lipgloss.Style {
	switch {
	case score >= 80:
		return valueStyle.Copy().Foreground(accentColor)
	case score >= 50:
		return valueStyle.Copy().Foreground(warningColor)
	}
	return valueStyle.Copy().Foreground(dangerColor)
}

func renderSummary(st *admin.StatusResponse, address string) string {
	s := st.Snapshot
	dispatcher := "stopped"
	if s.Running {
		dispatcher = "running"
	}

	networks := "none"
	if len(st.Networks) > 0 {
		parts := make([]string, len(st.Networks))
		for i, n := range st.Networks {
			parts[i] = fmt.Sprint(n)
		}
		networks = strings.Join(parts, ", ")
	}

	rows := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"Admin address", address, valueStyle},
		{"Health", fmt.Sprintf("%.0f/100", st.Health), healthStyle(st.Health)},
		{"Dispatcher", dispatcher, valueStyle},
		{"Clusters (active)", fmt.Sprintf("%d (%d)", s.Clusters, s.ActiveClusters), valueStyle},
		{"Members", fmt.Sprint(s.Members), valueStyle},
		{"Subscriptions", fmt.Sprint(s.Subscriptions), valueStyle},
		{"Queued notifications", fmt.Sprintf("%d / %d", s.PendingNotifications, s.QueueCapacity), valueStyle},
		{"Networks", networks, valueStyle},
	}

	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(labelStyle.Render(r.label) + r.style.Render(r.value))
	}
	return b.String()
}

func renderClusterTable(clusters []admin.ClusterInfo) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(bgLightColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return rowStyle.Copy().Foreground(fgColor)
		})

	t.Headers("CLUSTER", "ID", "MASK", "TYPE", "DEFAULT ROLE", "STATE", "MEMBERS", "SUBS", "NETWORK")

	for _, c := range clusters {
		network := "-"
		if c.Network != nil {
			network = fmt.Sprint(*c.Network)
		}
		t.Row(c.Mnemonic, c.ID, c.GroupMask, c.Type, c.DefaultRole, c.State,
			fmt.Sprint(len(c.Members)), fmt.Sprint(c.Subscriptions), network)
	}
	return t.Render()
}
