package parser

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seenimoa/filinglens/pkg/models"
	"github.com/seenimoa/filinglens/pkg/utils"
)

// ParseInfoTable parses a 13F information table into holding lines in
// document order. raw may be the bare XML document or a full submission
// text that embeds it. Values are returned as reported; callers normalize
// units with utils.NormalizeValue once the filing date is known.
func (p *Parser) ParseInfoTable(raw, accession string) []models.HoldingLine {
	rows := blocks(raw, "infoTable")
	if len(rows) == 0 {
		p.logger.Debug("no infoTable elements", zap.String("accession", accession))
		return nil
	}

	lines := make([]models.HoldingLine, 0, len(rows))
	for i, row := range rows {
		line := models.HoldingLine{
			AccessionNumber: accession,
			RowKey:          strconv.Itoa(i + 1),
			IssuerName:      field(row, "nameOfIssuer"),
			TitleOfClass:    field(row, "titleOfClass"),
			CUSIP:           utils.NormalizeCUSIP(field(row, "cusip")),
			FIGI:            field(row, "figi"),
			Value:           utils.ParseIntOrZero(field(row, "value")),
			OtherManager:    field(row, "otherManager"),
		}

		if amt, ok := block(row, "shrsOrPrnAmt"); ok {
			line.Shares = utils.ParseIntOrZero(field(amt, "sshPrnamt"))
			line.ShareType = strings.ToUpper(field(amt, "sshPrnamtType"))
		} else {
			line.Shares = utils.ParseIntOrZero(field(row, "sshPrnamt"))
			line.ShareType = strings.ToUpper(field(row, "sshPrnamtType"))
		}

		switch pc := strings.ToUpper(field(row, "putCall")); pc {
		case models.OptionPut, models.OptionCall:
			line.PutCall = pc
		}

		disc := strings.ToUpper(field(row, "investmentDiscretion"))
		if models.ValidDiscretion(disc) {
			line.InvestmentDiscretion = disc
		} else if disc != "" {
			p.logger.Debug("unknown investment discretion",
				zap.String("accession", accession), zap.String("code", disc))
		}

		if va, ok := block(row, "votingAuthority"); ok {
			line.VotingSole = utils.ParseIntOrZero(field(va, "Sole"))
			line.VotingShared = utils.ParseIntOrZero(field(va, "Shared"))
			line.VotingNone = utils.ParseIntOrZero(field(va, "None"))
		}

		if !utils.IsCUSIP(line.CUSIP) {
			p.logger.Debug("holding line with invalid cusip",
				zap.String("accession", accession), zap.Int("row", i+1), zap.String("cusip", line.CUSIP))
		}
		lines = append(lines, line)
	}
	return lines
}
