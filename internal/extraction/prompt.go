package extraction

import "docextract/internal/domain"

// UserPrompt is the short user-level cue sent alongside the image.
const UserPrompt = "Extract and return structured JSON data."

// BuildPrompt returns the system instruction for the given document type.
// The output depends on the document type only.
func BuildPrompt(docType domain.DocumentType) string {
	return `Extract structured details from a ` + docType.Label() + ` and return only a JSON response.
Ensure the JSON follows this format exactly:
{
  "po_number": "...",
  "created_on": "...",
  "delivery_date": "...",
  "supplier_details": {"name": "...", "location": "..."},
  "ship_to": {"name": "...", "phone": "...", "address": "..."},
  "created_by": "...",
  "items": [
    {"item_name": "...", "uom": "...", "quantity": 0, "price": 0, "subtotal": 0, "tax": 0, "total": 0}
  ],
  "sub_total": 0,
  "tax": 0,
  "total_amount": 0
}
DO NOT include explanations, introductions, markdown, code fences, or anything other than valid JSON output.`
}
