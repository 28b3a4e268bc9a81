package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/paperrank/internal/engine"
	"github.com/matsen/paperrank/internal/pdf"
	"github.com/matsen/paperrank/internal/reference"
	"github.com/matsen/paperrank/internal/semantic"
	"github.com/matsen/paperrank/internal/storage"
	"github.com/matsen/paperrank/internal/window"
)

var windowMaxPages int

func init() {
	rootCmd.AddCommand(windowCmd)

	windowCmd.Flags().IntVar(&windowMaxPages, "max-pages", 0, "Read at most this many PDF pages (0 = all)")
}

var windowCmd = &cobra.Command{
	Use:   "window <paper-id | file.pdf>",
	Short: "Show how a paper is split into encoder windows",
	Long: `Show the token windows a paper is cut into before embedding, using the
configured tokenizer and windowing settings.

The argument is either a paper id, whose PDF is read when one is on file and
whose title and abstract are used otherwise, or a path to a PDF. For a PDF
path the DOI found in the text is used to look up the paper id.`,
	Args: cobra.ExactArgs(1),
	RunE: runWindow,
}

// WindowInfo is one window in the window command output.
type WindowInfo struct {
	Index  int    `json:"index"`
	Tokens int    `json:"tokens"`
	Text   string `json:"text"`
}

// WindowResponse is the response for the window command.
type WindowResponse struct {
	Source  string        `json:"source"` // pdf | abstract
	Path    string        `json:"path,omitempty"`
	PaperID string        `json:"paper_id,omitempty"`
	DOI     string        `json:"doi,omitempty"`
	Title   string        `json:"title,omitempty"`
	Config  window.Config `json:"config"`
	Windows []WindowInfo  `json:"windows"`
	Total   int           `json:"total"`
}

// paperStore is the corpus view the window command reads from.
type paperStore interface {
	GetByID(ctx context.Context, id string) (*reference.Reference, error)
	GetByDOI(ctx context.Context, doi string) (*reference.Reference, error)
}

// document is the text a window request resolved to.
type document struct {
	Source  string
	Path    string
	PaperID string
	DOI     string
	Title   string
	Text    string
}

// loadDocument resolves arg to text: a PDF path directly, or a paper id through
// its PDF when available and its title and abstract otherwise.
func loadDocument(ctx context.Context, arg string, papers paperStore, resolver *pdf.Resolver, maxPages int) (*document, error) {
	if strings.HasSuffix(strings.ToLower(arg), ".pdf") {
		path, err := resolver.ResolvePath(arg)
		if err != nil {
			return nil, err
		}
		pd, err := pdf.Read(path, maxPages)
		if err != nil {
			return nil, err
		}
		doc := &document{Source: "pdf", Path: path, DOI: pd.DOI, Title: pd.Title, Text: pdf.CleanText(pd.Text)}
		if doc.DOI != "" {
			if ref, err := papers.GetByDOI(ctx, doc.DOI); err == nil {
				doc.PaperID, doc.Title = ref.ID, ref.Title
			} else if !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
		}
		return doc, nil
	}

	ref, err := papers.GetByID(ctx, arg)
	if err != nil {
		return nil, err
	}
	doc := &document{Source: "abstract", PaperID: ref.ID, DOI: ref.DOI, Title: ref.Title}
	if path, err := resolver.ResolvePath(ref.PDFPath); err == nil {
		if pd, err := pdf.Read(path, maxPages); err == nil && strings.TrimSpace(pd.Text) != "" {
			doc.Source, doc.Path, doc.Text = "pdf", path, pdf.CleanText(pd.Text)
			return doc, nil
		}
	}
	doc.Text = semantic.DocumentText(*ref)
	return doc, nil
}

// describeWindows splits text and reports each window.
func describeWindows(text string, tok window.Tokenizer, cfg window.Config) ([]WindowInfo, error) {
	batch, err := window.Split([]string{text}, tok, cfg)
	if err != nil {
		return nil, err
	}
	windows := batch.Groups()[0]
	infos := make([]WindowInfo, len(windows))
	for i, w := range windows {
		infos[i] = WindowInfo{Index: i, Tokens: len(w.IDs), Text: w.Text}
	}
	return infos, nil
}

func runWindow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	doc, err := loadDocument(ctx, args[0], db, pdf.NewResolver(cfg.PDFRoot), windowMaxPages)
	if err != nil {
		exitWithErr(err, "loading document")
	}

	tok, err := engine.NewTokenizer(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "loading tokenizer: %v", err)
	}
	windows, err := describeWindows(doc.Text, tok, cfg.Windowing)
	if err != nil {
		exitWithErr(err, "windowing")
	}

	if humanOutput {
		label := doc.PaperID
		if label == "" {
			label = doc.Path
		}
		if doc.Title != "" {
			fmt.Println(doc.Title)
		}
		fmt.Printf("%s (%s): %d windows, max_length %d, overlap %d\n\n",
			label, doc.Source, len(windows), cfg.Windowing.MaxLength, cfg.Windowing.Overlap)
		for _, w := range windows {
			fmt.Printf("%3d. [%d tokens] %s\n", w.Index+1, w.Tokens, truncateString(w.Text, WindowTextMaxLen))
		}
	} else {
		outputJSON(WindowResponse{
			Source:  doc.Source,
			Path:    doc.Path,
			PaperID: doc.PaperID,
			DOI:     doc.DOI,
			Title:   doc.Title,
			Config:  cfg.Windowing,
			Windows: windows,
			Total:   len(windows),
		})
	}
	return nil
}
