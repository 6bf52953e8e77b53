// Package stages declares the built-in eleven-stage capital-loan field
// inspection wizard. Deployments that need a different schema load their
// own definitions through schema.LoadYAML instead.
package stages

import (
	"github.com/harvestry/go-inspectform/pkg/schema"
	"github.com/harvestry/go-inspectform/pkg/triplestate"
)

// Registry returns the validated built-in wizard schema.
func Registry() (*schema.Registry, error) {
	return schema.NewRegistry(All()...)
}

// MustRegistry is Registry for package-level wiring.
func MustRegistry() *schema.Registry {
	return schema.MustRegistry(All()...)
}

// All returns the built-in stage definitions in wizard order.
func All() []schema.StageDefinition {
	return []schema.StageDefinition{
		personalInfo(),
		identityProof(),
		financeInfo(),
		landInfo(),
		investmentInfo(),
		cultivationInfo(),
		croppingSystem(),
		profitRisk(),
		economicsInfo(),
		labourInfo(),
		harvestStorage(),
	}
}

func personalInfo() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "personalInfo",
		Order: 1,
		Title: "Personal Data",
		Fields: []schema.FieldDefinition{
			{Key: "firstName", Label: "First name", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters, Required: true},
			{Key: "lastName", Label: "Last name", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters, Required: true},
			{Key: "houseNumber", Label: "House number", Type: schema.TypeShortText, Alphabet: schema.AlphabetAlphanumeric, Required: true},
			{Key: "phone1", Label: "Primary phone", Type: schema.TypeNumericInteger, Required: true, LeadingDigit: "7",
				UniquenessGroup: []string{"phone1", "phone2", "familyPhone"}},
			{Key: "phone2", Label: "Secondary phone", Type: schema.TypeNumericInteger, LeadingDigit: "7",
				UniquenessGroup: []string{"phone1", "phone2", "familyPhone"}},
			{Key: "familyPhone", Label: "Family phone", Type: schema.TypeNumericInteger, LeadingDigit: "7",
				UniquenessGroup: []string{"phone1", "phone2", "familyPhone"}},
			{Key: "email", Label: "Email", Type: schema.TypeEmail,
				UniquenessGroup: []string{"email", "familyEmail"}},
			{Key: "familyEmail", Label: "Family email", Type: schema.TypeEmail,
				UniquenessGroup: []string{"email", "familyEmail"}},
		},
	}
}

func identityProof() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "identityProof",
		Order: 2,
		Title: "Identity Proof",
		Fields: []schema.FieldDefinition{
			{Key: "idNumber", Label: "ID number", Type: schema.TypeShortText, Alphabet: schema.AlphabetAlphanumeric, Required: true},
			{Key: "idPhotos", Label: "ID photos", Type: schema.TypeImageList, Required: true},
			{Key: "holderPhoto", Label: "Holder photo", Type: schema.TypeImageList, Required: true},
		},
	}
}

func financeInfo() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "financeInfo",
		Order: 3,
		Title: "Finance",
		Fields: []schema.FieldDefinition{
			{Key: "hasBankAccount", Label: "Has bank account", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingIntZeroOne,
				ClearsOnNo:   []string{"bankName", "branchName", "accountNumber"}},
			{Key: "bankName", Label: "Bank", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters,
				RequiredRule: `hasBankAccount == "Yes"`},
			{Key: "branchName", Label: "Branch", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters,
				RequiredRule: `hasBankAccount == "Yes"`},
			{Key: "accountNumber", Label: "Account number", Type: schema.TypeNumericInteger, MaxDigits: 12,
				RequiredRule: `hasBankAccount == "Yes"`},
			{Key: "monthlyIncome", Label: "Monthly income", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "existingLoan", Label: "Existing loan", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingIntZeroOne,
				ClearsOnNo:   []string{"loanBalance"}},
			{Key: "loanBalance", Label: "Outstanding balance", Type: schema.TypeNumericDecimal,
				RequiredRule: `existingLoan == "Yes"`},
		},
	}
}

func landInfo() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "landInfo",
		Order: 4,
		Title: "Land Info",
		Fields: []schema.FieldDefinition{
			{Key: "plotNumber", Label: "Plot number", Type: schema.TypeShortText, Alphabet: schema.AlphabetAlphanumeric, Required: true},
			{Key: "ownsLand", Label: "Owns the land", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingYesNoString,
				ClearsOnNo:   []string{"titleDeedNumber"}},
			{Key: "titleDeedNumber", Label: "Title deed number", Type: schema.TypeShortText, Alphabet: schema.AlphabetAlphanumeric,
				RequiredRule: `ownsLand == "Yes"`},
			{Key: "landSizeAcres", Label: "Land size (acres)", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "location", Label: "Plot location", Type: schema.TypeGeoPoint, Required: true},
			{Key: "landPhotos", Label: "Land photos", Type: schema.TypeImageList, Required: true},
		},
	}
}

func investmentInfo() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "investmentInfo",
		Order: 5,
		Title: "Investment",
		Fields: []schema.FieldDefinition{
			{Key: "investmentAmount", Label: "Requested amount", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "investmentPurpose", Label: "Purpose", Type: schema.TypeFreeText, Required: true},
			{Key: "hasOwnContribution", Label: "Own contribution", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingYesNoString,
				ClearsOnNo:   []string{"contributionAmount"}},
			{Key: "contributionAmount", Label: "Contribution amount", Type: schema.TypeNumericDecimal, ForbidZero: true,
				RequiredRule: `hasOwnContribution == "Yes"`},
		},
	}
}

func cultivationInfo() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "cultivationInfo",
		Order: 6,
		Title: "Cultivation",
		Fields: []schema.FieldDefinition{
			{Key: "mainCrop", Label: "Main crop", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters, Required: true},
			{Key: "soilPH", Label: "Soil pH", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "usesIrrigation", Label: "Uses irrigation", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingLowerYesNo,
				ClearsOnNo:   []string{"irrigationSource"}},
			{Key: "irrigationSource", Label: "Irrigation source", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters,
				RequiredRule: `usesIrrigation == "Yes"`},
			{Key: "usesFertilizer", Label: "Uses fertilizer", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingLowerYesNo},
		},
	}
}

func croppingSystem() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "croppingSystem",
		Order: 7,
		Title: "Cropping Systems",
		Fields: []schema.FieldDefinition{
			{Key: "cropSystems", Label: "Cropping systems", Type: schema.TypeMultiSelect, Required: true,
				Options:     []string{"Monocropping", "Intercropping", "Crop rotation", "Relay cropping", "Other"},
				OtherOption: "Other", OtherKey: "cropSystemOther"},
			{Key: "cropSystemOther", Label: "Other cropping system", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters},
			{Key: "seasonsPerYear", Label: "Seasons per year", Type: schema.TypeNumericInteger, MaxDigits: 1, Required: true},
		},
	}
}

func profitRisk() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "profitRisk",
		Order: 8,
		Title: "Profit & Risk",
		Fields: []schema.FieldDefinition{
			{Key: "expectedProfit", Label: "Expected profit", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "riskPresent", Label: "Risks present", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingYesNoString,
				ClearsOnNo:   []string{"riskDescription", "riskSolution", "riskManageable", "riskWorthIt"}},
			{Key: "riskDescription", Label: "Risk description", Type: schema.TypeFreeText,
				RequiredRule: `riskPresent == "Yes"`},
			{Key: "riskSolution", Label: "Proposed solution", Type: schema.TypeFreeText,
				RequiredRule: `riskPresent == "Yes"`},
			{Key: "riskManageable", Label: "Risk manageable", Type: schema.TypeTripleState,
				BoolEncoding: triplestate.EncodingYesNoString,
				RequiredRule: `riskPresent == "Yes"`},
			{Key: "riskWorthIt", Label: "Worth the risk", Type: schema.TypeTripleState,
				BoolEncoding: triplestate.EncodingYesNoString,
				RequiredRule: `riskPresent == "Yes"`},
		},
	}
}

func economicsInfo() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "economicsInfo",
		Order: 9,
		Title: "Economics",
		Fields: []schema.FieldDefinition{
			{Key: "productionCost", Label: "Production cost", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "expectedRevenue", Label: "Expected revenue", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "sellsAtMarket", Label: "Sells at market", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingIntZeroOne,
				ClearsOnNo:   []string{"marketDistanceKm"}},
			{Key: "marketDistanceKm", Label: "Market distance (km)", Type: schema.TypeNumericDecimal,
				RequiredRule: `sellsAtMarket == "Yes"`},
		},
	}
}

func labourInfo() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "labourInfo",
		Order: 10,
		Title: "Labour",
		Fields: []schema.FieldDefinition{
			{Key: "familyWorkers", Label: "Family workers", Type: schema.TypeNumericInteger, MaxDigits: 2, Required: true},
			{Key: "hiresWorkers", Label: "Hires workers", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingIntZeroOne,
				ClearsOnNo:   []string{"hiredWorkers", "dailyWage"}},
			{Key: "hiredWorkers", Label: "Hired workers", Type: schema.TypeNumericInteger, MaxDigits: 3,
				RequiredRule: `hiresWorkers == "Yes"`},
			{Key: "dailyWage", Label: "Daily wage", Type: schema.TypeNumericDecimal, ForbidZero: true,
				RequiredRule: `hiresWorkers == "Yes"`},
		},
	}
}

func harvestStorage() schema.StageDefinition {
	return schema.StageDefinition{
		ID:    "harvestStorage",
		Order: 11,
		Title: "Harvest & Storage",
		Fields: []schema.FieldDefinition{
			{Key: "expectedYieldKg", Label: "Expected yield (kg)", Type: schema.TypeNumericDecimal, Required: true, ForbidZero: true},
			{Key: "hasStorage", Label: "Has storage", Type: schema.TypeTripleState, Required: true,
				BoolEncoding: triplestate.EncodingYesNoString,
				ClearsOnNo:   []string{"storageType", "storagePhotos"}},
			{Key: "storageType", Label: "Storage type", Type: schema.TypeShortText, Alphabet: schema.AlphabetLetters,
				RequiredRule: `hasStorage == "Yes"`},
			{Key: "storagePhotos", Label: "Storage photos", Type: schema.TypeImageList,
				RequiredRule: `hasStorage == "Yes"`},
		},
	}
}
