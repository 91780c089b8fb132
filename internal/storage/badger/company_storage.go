package badger

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CompanyStorage implements the CompanyStorage interface for Badger
type CompanyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new CompanyStorage instance
func NewCompanyStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new company. The domain is normalized before the
// uniqueness check; a clash maps to interfaces.ErrDuplicateDomain so parallel
// discovery sources can treat it as a duplicate outcome. Empty domains are
// exempt from the check: hosted-board discoveries may carry no company site,
// and any number of domain-less rows can coexist.
func (s *CompanyStorage) Create(company *models.Company) error {
	if company.ID == "" {
		return fmt.Errorf("company ID is required")
	}
	company.Domain = models.NormalizeDomain(company.Domain)

	now := time.Now().UTC()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now

	if company.Domain != "" {
		if existing, err := s.GetByDomain(company.Domain); err == nil && existing != nil {
			return fmt.Errorf("domain %s: %w", company.Domain, interfaces.ErrDuplicateDomain)
		}
	}

	if err := s.db.Store().Insert(company.ID, company); err != nil {
		if IsDuplicate(err) && company.Domain != "" {
			return fmt.Errorf("company %s: %w", company.Domain, interfaces.ErrDuplicateDomain)
		}
		return fmt.Errorf("failed to insert company: %w", err)
	}
	return nil
}

// Update persists changes to an existing company.
func (s *CompanyStorage) Update(company *models.Company) error {
	if company.ID == "" {
		return fmt.Errorf("company ID is required")
	}
	company.Domain = models.NormalizeDomain(company.Domain)
	company.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(company.ID, company); err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	return nil
}

func (s *CompanyStorage) Get(id string) (*models.Company, error) {
	var company models.Company
	if err := s.db.Store().Get(id, &company); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("company %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

func (s *CompanyStorage) GetByDomain(domain string) (*models.Company, error) {
	normalized := models.NormalizeDomain(domain)
	if normalized == "" {
		return nil, fmt.Errorf("empty domain: %w", ErrNotFound)
	}

	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("Domain").Eq(normalized).Limit(1)); err != nil {
		return nil, fmt.Errorf("failed to find company by domain: %w", err)
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("domain %s: %w", normalized, ErrNotFound)
	}
	return &companies[0], nil
}

func (s *CompanyStorage) Delete(id string) error {
	if err := s.db.Store().Delete(id, &models.Company{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}

// ListActive returns every active company.
func (s *CompanyStorage) ListActive() ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list active companies: %w", err)
	}
	return toPointers(companies), nil
}

// ListActiveWithATS returns active companies that have any ATS family set,
// including custom ones.
func (s *CompanyStorage) ListActiveWithATS() ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("IsActive").Eq(true).And("ATSFamily").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list companies with ATS: %w", err)
	}
	return toPointers(companies), nil
}

// ListByATSFamily returns active companies in one family.
func (s *CompanyStorage) ListByATSFamily(family string) ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("ATSFamily").Eq(family).And("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list companies by family: %w", err)
	}
	return toPointers(companies), nil
}

// ListCrawlable returns active companies not crawled since olderThan,
// highest crawl priority first. Companies never crawled sort before
// everything else. A non-empty family narrows the selection to one ATS
// family, which lets per-family crawls batch independently.
func (s *CompanyStorage) ListCrawlable(family string, olderThan time.Time, limit int) ([]*models.Company, error) {
	query := badgerhold.Where("IsActive").Eq(true)
	if family != "" {
		query = query.And("ATSFamily").Eq(family)
	}

	var companies []models.Company
	if err := s.db.Store().Find(&companies, query); err != nil {
		return nil, fmt.Errorf("failed to list crawlable companies: %w", err)
	}

	eligible := make([]*models.Company, 0, len(companies))
	for i := range companies {
		c := &companies[i]
		if c.LastCrawledAt != nil && c.LastCrawledAt.After(olderThan) {
			continue
		}
		eligible = append(eligible, c)
	}

	sortCompaniesForCrawl(eligible)

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

// ListMaintainable returns active companies with a careers URL and a known
// family whose last maintenance predates olderThan. Never-maintained
// companies sort first, then the longest-unmaintained.
func (s *CompanyStorage) ListMaintainable(family string, olderThan time.Time, limit int) ([]*models.Company, error) {
	query := badgerhold.Where("IsActive").Eq(true).And("CareersURL").Ne("")
	if family != "" {
		query = query.And("ATSFamily").Eq(family)
	} else {
		query = query.And("ATSFamily").Ne("")
	}

	var companies []models.Company
	if err := s.db.Store().Find(&companies, query); err != nil {
		return nil, fmt.Errorf("failed to list maintainable companies: %w", err)
	}

	eligible := make([]*models.Company, 0, len(companies))
	for i := range companies {
		c := &companies[i]
		if c.LastMaintenanceAt != nil && c.LastMaintenanceAt.After(olderThan) {
			continue
		}
		eligible = append(eligible, c)
	}

	for i := 1; i < len(eligible); i++ {
		for j := i; j > 0 && maintainBefore(eligible[j], eligible[j-1]); j-- {
			eligible[j], eligible[j-1] = eligible[j-1], eligible[j]
		}
	}

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func maintainBefore(a, b *models.Company) bool {
	aNever := a.LastMaintenanceAt == nil
	bNever := b.LastMaintenanceAt == nil
	if aNever != bNever {
		return aNever
	}
	if !aNever && !bNever {
		return a.LastMaintenanceAt.Before(*b.LastMaintenanceAt)
	}
	return false
}

// ListForNetworkCrawl returns active companies the network crawler has not
// visited yet.
func (s *CompanyStorage) ListForNetworkCrawl(limit int) ([]*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list companies for network crawl: %w", err)
	}

	eligible := make([]*models.Company, 0, len(companies))
	for i := range companies {
		c := &companies[i]
		if c.LastCrawledForNetwork != nil {
			continue
		}
		if c.Domain == "" {
			continue
		}
		eligible = append(eligible, c)
		if limit > 0 && len(eligible) >= limit {
			break
		}
	}
	return eligible, nil
}

func (s *CompanyStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.Company{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return int(count), nil
}

func (s *CompanyStorage) CountActive() (int, error) {
	count, err := s.db.Store().Count(&models.Company{}, badgerhold.Where("IsActive").Eq(true))
	if err != nil {
		return 0, fmt.Errorf("failed to count active companies: %w", err)
	}
	return int(count), nil
}

func (s *CompanyStorage) CountByATSFamily() (map[string]int, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("ATSFamily").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to count companies by family: %w", err)
	}

	counts := make(map[string]int)
	for i := range companies {
		counts[companies[i].ATSFamily]++
	}
	return counts, nil
}

// CountCrawledSince reports how many companies were crawled after the given
// time.
func (s *CompanyStorage) CountCrawledSince(since time.Time) (int, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return 0, fmt.Errorf("failed to count recently crawled companies: %w", err)
	}

	count := 0
	for i := range companies {
		if at := companies[i].LastCrawledAt; at != nil && at.After(since) {
			count++
		}
	}
	return count, nil
}

// sortCompaniesForCrawl orders by never-crawled first, then priority
// descending, then oldest crawl first.
func sortCompaniesForCrawl(companies []*models.Company) {
	for i := 1; i < len(companies); i++ {
		for j := i; j > 0 && crawlBefore(companies[j], companies[j-1]); j-- {
			companies[j], companies[j-1] = companies[j-1], companies[j]
		}
	}
}

func crawlBefore(a, b *models.Company) bool {
	aNever := a.LastCrawledAt == nil
	bNever := b.LastCrawledAt == nil
	if aNever != bNever {
		return aNever
	}
	if a.CrawlPriority != b.CrawlPriority {
		return a.CrawlPriority > b.CrawlPriority
	}
	if !aNever && !bNever {
		return a.LastCrawledAt.Before(*b.LastCrawledAt)
	}
	return false
}

func toPointers(companies []models.Company) []*models.Company {
	result := make([]*models.Company, len(companies))
	for i := range companies {
		result[i] = &companies[i]
	}
	return result
}
