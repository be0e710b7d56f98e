package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/nextplay/autoplay"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "Edit the runtime page list read by run --pages-db",
}

var pagesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or re-enable a page",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		url, _ := cmd.Flags().GetString("url")
		return withStore(cmd, func(s *autoplay.PageStore) error {
			return s.Put(cmd.Context(), autoplay.PageConfig{ID: id, URL: url})
		})
	},
}

var pagesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Stop driving a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *autoplay.PageStore) error {
			return s.Disable(cmd.Context(), args[0])
		})
	},
}

var pagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print active pages as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(s *autoplay.PageStore) error {
			pages, err := s.Active(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, p := range pages {
				if err := enc.Encode(map[string]string{"id": p.ID, "url": p.URL}); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(pagesCmd)
	pagesCmd.PersistentFlags().String("db", "nextplay-pages.db", "page database path")
	pagesCmd.AddCommand(pagesAddCmd, pagesDisableCmd, pagesListCmd)

	pagesAddCmd.Flags().String("id", "", "page id")
	pagesAddCmd.Flags().String("url", "", "page URL")
	pagesAddCmd.MarkFlagRequired("id")
	pagesAddCmd.MarkFlagRequired("url")
}

func withStore(cmd *cobra.Command, fn func(*autoplay.PageStore) error) error {
	path, _ := cmd.Flags().GetString("db")
	s, err := autoplay.OpenPageStore(path)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := fn(s); err != nil {
		return fmt.Errorf("pages: %w", err)
	}
	return nil
}
