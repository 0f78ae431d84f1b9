package cli

import (
	"fmt"
	"time"

	"github.com/evoagent/core/pkg/knowledge"
)

// KnowledgeCmd groups the curated knowledge store's list/search/add/remove
// operations.
type KnowledgeCmd struct {
	List   KnowledgeListCmd   `cmd:"" help:"List knowledge items, optionally by category."`
	Search KnowledgeSearchCmd `cmd:"" help:"Search knowledge items by filename or content."`
	Add    KnowledgeAddCmd    `cmd:"" help:"Add a manually curated knowledge item."`
	Remove KnowledgeRemoveCmd `cmd:"" help:"Remove a knowledge item."`
}

type KnowledgeListCmd struct {
	Category string `help:"Restrict to one category (pits, patterns, decisions, solutions)."`
}

func (cmd *KnowledgeListCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	store, err := openKnowledgeStore(cfg)
	if err != nil {
		return err
	}

	items, err := store.SearchByFilename("")
	if err != nil {
		return err
	}
	for _, item := range items {
		if cmd.Category != "" && string(item.Category) != cmd.Category {
			continue
		}
		fmt.Printf("%-10s %-10s %-20s %s\n", item.Source, item.Category, item.Slug, item.FrontMatter.Title)
	}
	return nil
}

type KnowledgeSearchCmd struct {
	Query string `arg:"" help:"Search query."`
}

func (cmd *KnowledgeSearchCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	store, err := openKnowledgeStore(cfg)
	if err != nil {
		return err
	}

	results, err := store.SearchByContent(cmd.Query)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Printf("%4d  %-10s %-20s %s\n", r.Score, r.Item.Category, r.Item.Slug, r.Item.FrontMatter.Title)
	}
	return nil
}

type KnowledgeAddCmd struct {
	Category string   `arg:"" help:"Category (pits, patterns, decisions, solutions)."`
	Slug     string   `arg:"" help:"Filesystem-safe identifier for the item."`
	Title    string   `required:"" help:"Title stored in the item's front matter."`
	Body     string   `required:"" help:"Markdown body content."`
	Tags     []string `help:"Comma-free repeatable tags." sep:","`
}

func (cmd *KnowledgeAddCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	store, err := openKnowledgeStore(cfg)
	if err != nil {
		return err
	}

	item := knowledge.Item{
		Category: knowledge.Category(cmd.Category),
		Slug:     cmd.Slug,
		Source:   knowledge.SourceManual,
		FrontMatter: knowledge.FrontMatter{
			Title:      cmd.Title,
			Tags:       cmd.Tags,
			Discovered: time.Now(),
			Source:     knowledge.SourceManual,
		},
		Body: cmd.Body,
	}
	if err := store.WriteManual(item); err != nil {
		return err
	}
	fmt.Printf("wrote manual/%s/%s.md\n", cmd.Category, cmd.Slug)
	return nil
}

type KnowledgeRemoveCmd struct {
	Source   string `arg:"" help:"Source tree the item lives in (auto or manual)."`
	Category string `arg:"" help:"Category the item lives in."`
	Slug     string `arg:"" help:"Item identifier."`
}

func (cmd *KnowledgeRemoveCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	store, err := openKnowledgeStore(cfg)
	if err != nil {
		return err
	}

	if err := store.Delete(knowledge.Source(cmd.Source), knowledge.Category(cmd.Category), cmd.Slug); err != nil {
		return err
	}
	fmt.Printf("removed %s/%s/%s.md\n", cmd.Source, cmd.Category, cmd.Slug)
	return nil
}
