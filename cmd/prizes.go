package cmd

import (
	"encoding/json"
	"fmt"

	sessionrender "github.com/bnema/growscratch-cli/internal/adapters/render/session"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/spf13/cobra"
)

type prizeOutput struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Rarity string `json:"rarity"`
	Image  string `json:"image,omitempty"`
}

func newPrizesCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "prizes",
		Short: "List the NFT prizes a play can win",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				prizes := make([]prizeOutput, 0, len(app.cfg.Game.Prizes))
				for _, prize := range app.cfg.Game.Prizes {
					prizes = append(prizes, prizeOutput{ID: prize.ID, Name: prize.Name, Rarity: string(prize.Rarity), Image: prize.Image})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(prizes)
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), sessionrender.RenderCatalog(app.cfg.Game.Prizes))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "\nWin rate %.0f%%, one play costs %s or %s.\n",
				app.cfg.Game.WinRate*100,
				playCost(app, domain.PaymentMethodStars),
				playCost(app, domain.PaymentMethodTON),
			)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func playCost(app *app, method domain.PaymentMethod) string {
	return domain.FormatAmount(app.cfg.Game.PlayCost(method), method)
}
