// Package patterns loads forwarder patterns and mapping rules from the
// database, a YAML file, or compiled-in defaults, in that order.
package patterns

import "forwarder-mapping-engine/internal/models"

// DefaultForwarderPatterns is the compiled-in pattern set used when neither
// the database nor a patterns file is available.
var DefaultForwarderPatterns = []models.ForwarderPattern{
	{
		ForwarderID: "default-dhl",
		Code:        "DHL",
		Name:        "DHL Express",
		DisplayName: "DHL Express",
		Names:       []string{"DHL", "DHL Express", "DHL Global", "DHL International"},
		Keywords:    []string{"waybill", "awb number", "dhl tracking", "express worldwide"},
		Formats:     []string{`\d{10}`, `[A-Z]{3}\d{7}`},
		LogoText:    []string{"dhl", "simply delivered"},
		Priority:    100,
	},
	{
		ForwarderID: "default-fedex",
		Code:        "FDX",
		Name:        "FedEx",
		DisplayName: "FedEx",
		Names:       []string{"FedEx", "Federal Express", "FedEx Express", "FedEx Ground"},
		Keywords:    []string{"fedex tracking", "door tag", "express saver", "international priority"},
		Formats:     []string{`\d{12}`, `\d{15}`, `\d{20,22}`},
		LogoText:    []string{"fedex", "federal express"},
		Priority:    100,
	},
	{
		ForwarderID: "default-ups",
		Code:        "UPS",
		Name:        "UPS",
		DisplayName: "UPS (United Parcel Service)",
		Names:       []string{"UPS", "United Parcel Service", "UPS Express", "UPS Ground"},
		Keywords:    []string{"ups tracking", "worldship", "ground shipping"},
		Formats:     []string{`1Z[A-Z0-9]{16}`, `\d{9}`, `\d{18}`},
		LogoText:    []string{"ups", "united parcel service"},
		Priority:    100,
	},
	{
		ForwarderID: "default-maersk",
		Code:        "MAERSK",
		Name:        "Maersk",
		DisplayName: "Maersk Line",
		Names:       []string{"Maersk", "Maersk Line", "A.P. Moller-Maersk"},
		Keywords:    []string{"bill of lading", "container number", "booking number", "vessel name"},
		Formats:     []string{`MSKU\d{7}`, `MRKU\d{7}`},
		LogoText:    []string{"maersk", "constant care"},
		Priority:    90,
	},
	{
		ForwarderID: "default-msc",
		Code:        "MSC",
		Name:        "MSC",
		DisplayName: "Mediterranean Shipping Company",
		Names:       []string{"MSC", "Mediterranean Shipping Company"},
		Keywords:    []string{"msc tracking", "bill of lading", "container tracking"},
		Formats:     []string{`MSCU\d{7}`, `MEDU\d{7}`},
		LogoText:    []string{"msc", "mediterranean shipping"},
		Priority:    90,
	},
	{
		ForwarderID: "default-sf",
		Code:        "SF",
		Name:        "SF Express",
		DisplayName: "SF Express",
		Names:       []string{"SF Express", "S.F. Express"},
		Keywords:    []string{"sf tracking", "express delivery", "waybill number"},
		Formats:     []string{`SF\d{12}`},
		LogoText:    []string{"sf express", "sf"},
		Priority:    80,
	},
}

// DefaultUniversalRules is the compiled-in rule set applied to every
// forwarder when no rules are configured. Structured lookups use the Azure
// prebuilt-invoice field names with text extraction as backup.
var DefaultUniversalRules = []models.MappingRule{
	{
		ID:         "default-invoice-id-azure",
		FieldName:  "invoiceId",
		FieldLabel: "Invoice Number",
		Extraction: models.AzureFieldPattern{AzureFieldName: "InvoiceId"},
		Priority:   100,
		IsRequired: true,
		Category:   "invoice",
	},
	{
		ID:         "default-invoice-id-regex",
		FieldName:  "invoiceId",
		FieldLabel: "Invoice Number",
		Extraction: models.RegexPattern{
			Pattern:    `(?:Invoice|INV)[\s#.No:]*([A-Z0-9][A-Z0-9\-/]{3,20})`,
			Flags:      "i",
			GroupIndex: 1,
		},
		Priority:   50,
		IsRequired: true,
		Category:   "invoice",
	},
	{
		ID:         "default-invoice-date-azure",
		FieldName:  "invoiceDate",
		FieldLabel: "Invoice Date",
		Extraction: models.AzureFieldPattern{AzureFieldName: "InvoiceDate"},
		Priority:   100,
		Category:   "invoice",
	},
	{
		ID:         "default-invoice-date-keyword",
		FieldName:  "invoiceDate",
		FieldLabel: "Invoice Date",
		Extraction: models.KeywordPattern{
			Keywords:    []string{"Invoice Date", "Date of Issue", "Issued"},
			MaxDistance: 40,
		},
		Priority: 50,
		Category: "invoice",
	},
	{
		ID:         "default-vendor-name-azure",
		FieldName:  "vendorName",
		FieldLabel: "Vendor Name",
		Extraction: models.AzureFieldPattern{AzureFieldName: "VendorName"},
		Priority:   100,
		Category:   "parties",
	},
	{
		ID:         "default-customer-name-azure",
		FieldName:  "customerName",
		FieldLabel: "Customer Name",
		Extraction: models.AzureFieldPattern{AzureFieldName: "CustomerName"},
		Priority:   100,
		Category:   "parties",
	},
	{
		ID:         "default-invoice-total-azure",
		FieldName:  "invoiceTotal",
		FieldLabel: "Invoice Total",
		Extraction: models.AzureFieldPattern{AzureFieldName: "InvoiceTotal"},
		Priority:   100,
		IsRequired: true,
		Category:   "amounts",
	},
	{
		ID:         "default-invoice-total-keyword",
		FieldName:  "invoiceTotal",
		FieldLabel: "Invoice Total",
		Extraction: models.KeywordPattern{
			Keywords:    []string{"Total Amount", "Amount Due", "Grand Total", "Total"},
			MaxDistance: 30,
		},
		Priority:   50,
		IsRequired: true,
		Category:   "amounts",
	},
	{
		ID:         "default-total-tax-azure",
		FieldName:  "totalTax",
		FieldLabel: "Total Tax",
		Extraction: models.AzureFieldPattern{AzureFieldName: "TotalTax"},
		Priority:   100,
		Category:   "amounts",
	},
	{
		ID:         "default-due-date-azure",
		FieldName:  "dueDate",
		FieldLabel: "Due Date",
		Extraction: models.AzureFieldPattern{AzureFieldName: "DueDate"},
		Priority:   100,
		Category:   "invoice",
	},
	{
		ID:         "default-tracking-number-regex",
		FieldName:  "trackingNumber",
		FieldLabel: "Tracking Number",
		Extraction: models.RegexPattern{
			Pattern:    `(?:Tracking|AWB|Waybill)[\s#.No:]*([A-Z0-9]{8,22})`,
			Flags:      "i",
			GroupIndex: 1,
		},
		Priority: 60,
		Category: "shipment",
	},
	{
		ID:         "default-gross-weight-keyword",
		FieldName:  "grossWeight",
		FieldLabel: "Gross Weight",
		Extraction: models.KeywordPattern{
			Keywords:    []string{"Gross Weight", "Chargeable Weight", "Weight"},
			MaxDistance: 25,
		},
		Priority: 40,
		Category: "shipment",
	},
}
