package ledger

// Section names an independently carried-forward part of an accounting report.
type Section string

const (
	SectionBanks            Section = "banks"
	SectionRegisterBalance  Section = "main_register.balance"
	SectionRegisterEntries  Section = "main_register.entries"
	SectionRegisterOutflows Section = "main_register.outflows"
	SectionRootDebts        Section = "root_debts"
	SectionSettlement       Section = "settlement"
	// SectionPlatform is a single named platform; the name travels separately.
	SectionPlatform Section = "platform"
	// SectionPlatforms is any non-empty platform list.
	SectionPlatforms Section = "transfer_platforms"
)

// ListSections are the sections resolved as a whole.
func ListSections() []Section {
	return []Section{
		SectionBanks,
		SectionRegisterBalance,
		SectionRegisterEntries,
		SectionRegisterOutflows,
		SectionRootDebts,
		SectionSettlement,
	}
}

// SourceKey is the key used in Snapshot.Sources for a section.
func SourceKey(section Section, platform string) string {
	if section == SectionPlatform {
		return string(section) + ":" + platform
	}
	return string(section)
}

// Has reports whether the report populates section. platform is only used for
// SectionPlatform.
func (r AccountingReport) Has(section Section, platform string) bool {
	switch section {
	case SectionBanks:
		return len(r.Banks) > 0
	case SectionRegisterBalance:
		return r.Register.Balance != nil
	case SectionRegisterEntries:
		return len(r.Register.Entries) > 0
	case SectionRegisterOutflows:
		return len(r.Register.Outflows) > 0
	case SectionRootDebts:
		return len(r.RootDebts) > 0
	case SectionSettlement:
		return r.Settlement != nil
	case SectionPlatform:
		_, ok := r.PlatformByName(platform)
		return ok
	case SectionPlatforms:
		return len(r.Platforms) > 0
	}
	return false
}

// CopySection copies section from src into r.
func (r *AccountingReport) CopySection(src AccountingReport, section Section) {
	switch section {
	case SectionBanks:
		r.Banks = src.Banks
	case SectionRegisterBalance:
		r.Register.Balance = src.Register.Balance
	case SectionRegisterEntries:
		r.Register.Entries = src.Register.Entries
	case SectionRegisterOutflows:
		r.Register.Outflows = src.Register.Outflows
	case SectionRootDebts:
		r.RootDebts = src.RootDebts
	case SectionSettlement:
		r.Settlement = src.Settlement
	case SectionPlatforms:
		r.Platforms = src.Platforms
	}
}
