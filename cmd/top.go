package cmd

import (
	"fmt"

	"github.com/newswire-app/newswire/internal/client"

	"github.com/spf13/cobra"
)

var (
	topURL  string
	topPage int
	topSize int
)

// topCmd reads the ranked feed from a running server.
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print the ranked feed from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(topURL)
		page, err := c.Feed(topPage, topSize)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Newswire top stories (page %d of %d, %d total)\n\n", page.Page, page.TotalPages, page.TotalCount)
		for i, item := range page.Items {
			rank := (page.Page-1)*page.PageSize + i + 1
			fmt.Fprintf(out, "%2d. %s\n", rank, item.Title)
			fmt.Fprintf(out, "    +%d / -%d | %d comments | %s\n", item.Likes, item.Dislikes, item.Descendants, item.URL)
		}
		return nil
	},
}

func init() {
	topCmd.Flags().StringVar(&topURL, "url", "http://localhost:8080", "Newswire server URL")
	topCmd.Flags().IntVar(&topPage, "page", 1, "feed page")
	topCmd.Flags().IntVar(&topSize, "size", 10, "stories per page")
	rootCmd.AddCommand(topCmd)
}
