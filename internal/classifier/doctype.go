package classifier

import "strings"

// DocumentType is the declared kind of an uploaded document.
type DocumentType string

// Known document types. Anything unrecognized is treated as TypeGeneric.
const (
	TypeTaxFolder          DocumentType = "tax-folder"
	TypeFinancialStatement DocumentType = "financial-statement"
	TypeBankStatement      DocumentType = "bank-statement"
	TypeGeneric            DocumentType = "generic"
)

var documentTypes = map[DocumentType]bool{
	TypeTaxFolder:          true,
	TypeFinancialStatement: true,
	TypeBankStatement:      true,
	TypeGeneric:            true,
}

// ParseDocumentType normalizes case and separators ("TAX_FOLDER", "Tax Folder")
// and falls back to TypeGeneric for unknown values.
func ParseDocumentType(s string) DocumentType {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)

	t := DocumentType(s)
	if documentTypes[t] {
		return t
	}
	return TypeGeneric
}

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	return documentTypes[t]
}
