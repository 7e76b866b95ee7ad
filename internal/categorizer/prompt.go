package categorizer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-ledger/internal/domain"
)

const instructions = "You categorize personal bank transactions.\n\n" +
	"Task:\n" +
	"- For every transaction below, choose the most appropriate category and, when the category has any, one of its subcategories.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n" +
	"- Output a JSON array with one object per transaction you can classify.\n\n" +
	"Each object must have these fields:\n" +
	"- \"id\": string, the transaction id exactly as given\n" +
	"- \"id_categoria\": string, the id of the chosen category\n" +
	"- \"id_subcategoria\": string, the id of the chosen subcategory, or \"\" when the category has none\n\n"

const rules = "Rules:\n" +
	"- Use ONLY ids from the category list above.\n" +
	"- A subcategory id must belong to the chosen category.\n" +
	"- Negative amounts are money out, positive amounts are money in.\n" +
	"- If you are unsure about a transaction, leave it out.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"[\" and end with \"]\".\n"

// categoriesPrompt lists the tree with the ids the model must answer with.
func categoriesPrompt(tree []domain.Category) string {
	var b strings.Builder
	b.WriteString("Categories (id: label) and their subcategories:\n\n")
	for _, c := range tree {
		fmt.Fprintf(&b, "%s: %s\n", c.Value, c.Label)
		if len(c.Subcategories) == 0 {
			b.WriteString("  (no subcategories - use \"\")\n\n")
			continue
		}
		for _, s := range c.Subcategories {
			fmt.Fprintf(&b, "  - %s: %s\n", s.Value, s.Label)
		}
		b.WriteString("\n")
	}
	return b.String()
}

type promptTxn struct {
	ID          string `json:"id"`
	Date        string `json:"fecha"`
	Description string `json:"descripcion"`
	Amount      string `json:"valor"`
}

// buildPrompt assembles the full request for one batch of transactions.
func buildPrompt(tree []domain.Category, txns []domain.Transaction) (string, error) {
	items := make([]promptTxn, 0, len(txns))
	for _, t := range txns {
		items = append(items, promptTxn{
			ID:          t.ID.String(),
			Date:        t.Date.String(),
			Description: t.Description,
			Amount:      t.Amount.String(),
		})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("buildPrompt: encoding transactions: %w", err)
	}
	return instructions + categoriesPrompt(tree) + "\nTransactions:\n" + string(payload) + "\n\n" + rules, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON array
// when the model ignored the instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
