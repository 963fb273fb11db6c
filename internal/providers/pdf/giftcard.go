package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

func (p *MarotoProvider) GenerateGiftCard(ctx context.Context, card GiftCardData) (io.Reader, error) {
	m := maroto.New(config.NewBuilder().Build())

	m.AddRow(20,
		text.NewCol(12, "Presentkort", props.Text{
			Size:  24,
			Style: fontstyle.Bold,
			Align: align.Center,
			Top:   5,
		}),
	)

	m.AddRow(15,
		text.NewCol(12, card.SellerName, props.Text{
			Size:  12,
			Align: align.Center,
		}),
	)

	m.AddRow(25,
		text.NewCol(12, card.Amount, props.Text{
			Size:  30,
			Style: fontstyle.Bold,
			Align: align.Center,
			Top:   5,
		}),
	)

	m.AddRow(12,
		text.NewCol(12, "Kod: "+card.Code, props.Text{
			Size:  14,
			Align: align.Center,
		}),
	)

	if card.RecipientName != "" {
		m.AddRow(10,
			text.NewCol(12, "Till: "+card.RecipientName, props.Text{
				Size:  11,
				Align: align.Center,
			}),
		)
	}
	if card.Message != "" {
		m.AddRow(15,
			text.NewCol(12, card.Message, props.Text{
				Size:  10,
				Align: align.Center,
				Top:   3,
			}),
		)
	}

	m.AddRow(10,
		col.New(2),
		text.NewCol(8, "Giltigt till: "+card.ExpiresAt, props.Text{
			Size:  9,
			Align: align.Center,
		}),
		col.New(2),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
