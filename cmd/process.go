package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/threadrank/internal/discussion"
	"github.com/threadrank/internal/sources/algolia"
	"github.com/threadrank/internal/sources/hnpage"
	"github.com/threadrank/pkg/models"
)

// ProcessCommand ranks a discussion saved to disk, without network access.
func ProcessCommand() *cli.Command {
	return &cli.Command{
		Name:  "process",
		Usage: "Rank a discussion from a saved Algolia item and saved HN pages",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "tree",
				Aliases:  []string{"t"},
				Usage:    "Algolia item JSON `FILE`",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "page",
				Aliases:  []string{"p"},
				Usage:    "HN item page HTML `FILE`, repeat for each page in order",
				Required: true,
			},
		}, outputFlags()...),
		Action: runProcess,
	}
}

func runProcess(c *cli.Context) error {
	if err := setupLogging(c, nil); err != nil {
		return err
	}

	post, root, err := readTree(c.String("tree"))
	if err != nil {
		return err
	}
	ann, err := readPages(c.StringSlice("page"))
	if err != nil {
		return err
	}

	res, err := discussion.Process(c.Context, root, ann)
	if err != nil {
		return err
	}
	return writeResult(c, post, res)
}

func readTree(path string) (*models.Post, *discussion.RawNode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read tree: %w", err)
	}
	item, err := algolia.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	root, err := item.Tree()
	if err != nil {
		return nil, nil, err
	}
	return item.Post(), root, nil
}

// readPages parses saved pages in order, continuing positions across them.
func readPages(paths []string) (discussion.Annotations, error) {
	ann := make(discussion.Annotations)
	offset := 0
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("read page: %w", err)
		}
		page, err := hnpage.Parse(f, offset)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for id, a := range page.Annotations {
			if _, seen := ann[id]; !seen {
				ann[id] = a
			}
		}
		offset += page.Rows
		log.Debug().Str("page", path).Int("rows", page.Rows).Msg("Parsed page")
	}
	return ann, nil
}
