package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	llmx "github.com/MazarSayed/stock-platform/agent/llm"
	"github.com/MazarSayed/stock-platform/agent/rag"
	configx "github.com/MazarSayed/stock-platform/pkg/config"
)

func newIngestCmd() *cobra.Command {
	var (
		file      string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed a JSON corpus and index it into pgvector",
		Long: `Reads a JSON array of {"doc_name","doc_type","content"} documents,
embeds each one and stores it in the rag_documents table.
doc_type is faq_rag or market_analysis.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			llmCfg, err := configx.New[llmx.Config]("LLM")
			if err != nil {
				return err
			}

			docs, err := rag.LoadCorpus(file)
			if err != nil {
				return err
			}

			pg, err := openPgvector(ctx, *llmCfg)
			if err != nil {
				return err
			}
			defer pg.close()

			n, err := pg.searcher.Index(ctx, docs, batchSize)
			if err != nil {
				return err
			}
			log.Info().Int("indexed", n).Str("file", file).Msg("corpus ingested")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "data/corpus.json", "corpus file")
	cmd.Flags().IntVar(&batchSize, "batch-size", 16, "documents embedded per request")

	return cmd
}
