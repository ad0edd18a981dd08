package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/bookclubapp/bookclub-server/internal/config"
	"github.com/bookclubapp/bookclub-server/internal/domain"
	apperrors "github.com/bookclubapp/bookclub-server/internal/errors"
	"github.com/bookclubapp/bookclub-server/internal/id"
	"github.com/bookclubapp/bookclub-server/internal/store/sqlite"
)

// CatalogService builds member-facing catalog and dashboard views and
// handles per-member book state (completion, ratings).
type CatalogService struct {
	store    *sqlite.Store
	settings *SettingsService
	club     config.ClubConfig
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store *sqlite.Store, settings *SettingsService, club config.ClubConfig, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		settings: settings,
		club:     club,
		logger:   logger,
	}
}

// BooksPayload assembles the full catalog for one member: their book
// copies with club-wide aggregates, discussion threads correlated by
// book identity, grouped by volume.
func (s *CatalogService) BooksPayload(ctx context.Context, userID string) (*domain.CatalogPayload, error) {
	books, err := s.store.ListBookViews(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.attachComments(ctx, userID, books); err != nil {
		return nil, err
	}

	fallbackURLs, err := s.settings.FallbackURLs(ctx)
	if err != nil {
		return nil, err
	}

	currentVolume := s.club.CurrentVolume
	pastVolume := s.club.PastVolume()

	groupsByVolume := make(map[int][]domain.BookView)
	for _, book := range books {
		groupsByVolume[book.Volume] = append(groupsByVolume[book.Volume], book)
	}
	// The current and previous volumes are always present, even empty,
	// so clients can render both shelves without special cases.
	if _, ok := groupsByVolume[currentVolume]; !ok {
		groupsByVolume[currentVolume] = []domain.BookView{}
	}
	if _, ok := groupsByVolume[pastVolume]; !ok {
		groupsByVolume[pastVolume] = []domain.BookView{}
	}

	volumes := make([]domain.VolumeGroup, 0, len(groupsByVolume))
	for volume, volumeBooks := range groupsByVolume {
		volumes = append(volumes, domain.VolumeGroup{Volume: volume, Books: volumeBooks})
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Volume > volumes[j].Volume })

	pastVolumes := make([]domain.VolumeGroup, 0, len(volumes))
	for _, group := range volumes {
		if group.Volume != currentVolume {
			pastVolumes = append(pastVolumes, group)
		}
	}

	payload := &domain.CatalogPayload{
		CurrentVolume:             currentVolume,
		PastVolume:                pastVolume,
		FeaturedImageFallbackURLs: fallbackURLs,
		Volumes:                   volumes,
		CurrentBooks:              groupsByVolume[currentVolume],
		PastBooks:                 groupsByVolume[pastVolume],
		PastVolumes:               pastVolumes,
		OtherBooks:                []domain.BookView{},
	}
	for _, book := range books {
		if book.Volume != currentVolume && book.Volume != pastVolume {
			payload.OtherBooks = append(payload.OtherBooks, book)
		}
	}
	return payload, nil
}

// attachComments correlates club-wide discussion to the viewer's book
// copies. Comments attach to book identities, so a comment written on
// another member's copy shows up under the viewer's copy of the same
// book. Replies whose parent is not visible are flattened to top level.
func (s *CatalogService) attachComments(ctx context.Context, userID string, books []domain.BookView) error {
	booksByIdentity := make(map[string][]*domain.BookView)
	for i := range books {
		identity := books[i].Identity()
		booksByIdentity[identity] = append(booksByIdentity[identity], &books[i])
		books[i].Comments = []domain.CommentView{}
	}

	rows, err := s.store.ListVisibleComments(ctx)
	if err != nil {
		return err
	}

	visible := make([]domain.CommentRow, 0, len(rows))
	visibleIDs := make(map[string]bool, len(rows))
	for _, row := range rows {
		if _, ok := booksByIdentity[row.Identity()]; !ok {
			continue
		}
		visible = append(visible, row)
		visibleIDs[row.ID] = true
	}
	if len(visible) == 0 {
		return nil
	}

	likeCounts, err := s.store.GetLikeCounts(ctx)
	if err != nil {
		return err
	}
	liked, err := s.store.ListLikedCommentIDs(ctx, userID)
	if err != nil {
		return err
	}

	for _, row := range visible {
		view := domain.CommentView{
			ID:            row.ID,
			Text:          row.Text,
			AuthorName:    row.AuthorName,
			AuthorUserID:  row.AuthorUserID,
			CreatedAt:     row.CreatedAt,
			LikesCount:    likeCounts[row.ID],
			IsLikedByUser: liked[row.ID],
		}
		if row.ParentCommentID != nil && visibleIDs[*row.ParentCommentID] {
			view.ParentCommentID = row.ParentCommentID
		}
		for _, book := range booksByIdentity[row.Identity()] {
			book.Comments = append(book.Comments, view)
		}
	}
	return nil
}

// Dashboard assembles the club-wide activity dashboard.
func (s *CatalogService) Dashboard(ctx context.Context) (*domain.DashboardPayload, error) {
	stats, err := s.store.GetDashboardStats(ctx, s.club.CurrentVolume, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMemberSummaries(ctx)
	if err != nil {
		return nil, err
	}
	schedule, err := s.store.ListMeetings(ctx, s.club.CurrentVolume)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.MemberSummary{}
	}
	if schedule == nil {
		schedule = []domain.Meeting{}
	}
	return &domain.DashboardPayload{Stats: *stats, Members: members, Schedule: schedule}, nil
}

// Members lists the approved member roster.
func (s *CatalogService) Members(ctx context.Context) ([]domain.MemberSummary, error) {
	members, err := s.store.ListMemberSummaries(ctx)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.MemberSummary{}
	}
	return members, nil
}

// MemberProfile builds the profile page for one member, with their
// recent comments resolved to the viewer's copies of the books.
func (s *CatalogService) MemberProfile(ctx context.Context, memberID, viewerID string) (*domain.MemberProfile, error) {
	member, err := s.store.GetMemberDetail(ctx, memberID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListRecentCommentsByMember(ctx, memberID, viewerID, 12)
	if err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []domain.MemberComment{}
	}
	return &domain.MemberProfile{Member: *member, RecentComments: comments}, nil
}

// SetCompletion marks the member's copy of a book as read or unread.
// Marking unread also clears any rating, since ratings only exist on
// completed copies.
func (s *CatalogService) SetCompletion(ctx context.Context, userID, bookID string, completed bool) error {
	return s.store.SetCompletion(ctx, bookID, userID, completed, time.Now().UTC())
}

// SetRating stores the member's 1-5 star rating on their completed copy.
func (s *CatalogService) SetRating(ctx context.Context, userID, bookID string, rating int) error {
	if rating < 1 || rating > 5 {
		return apperrors.Validation("Rating must be between 1 and 5.")
	}
	return s.store.SetRating(ctx, bookID, userID, rating, time.Now().UTC())
}

// ClearRating removes the member's rating from their copy.
func (s *CatalogService) ClearRating(ctx context.Context, userID, bookID string) error {
	return s.store.ClearRating(ctx, bookID, userID)
}

type seedBook struct {
	title      string
	author     string
	month      string
	isFeatured bool
	comments   []string
}

// SeedStarterCatalog populates a brand-new member's catalog with the
// club's starter reading list so their shelves are not empty on first
// sign-in.
func (s *CatalogService) SeedStarterCatalog(ctx context.Context, userID string) error {
	seeds := map[int][]seedBook{
		s.club.CurrentVolume: {
			{
				title:      "The Ministry for the Future",
				author:     "Kim Stanley Robinson",
				month:      "February",
				isFeatured: true,
				comments:   []string{"Great opening discussion on climate policy."},
			},
			{
				title:    "Tomorrow, and Tomorrow, and Tomorrow",
				author:   "Gabrielle Zevin",
				month:    "March",
				comments: []string{"Potential pick for our game-dev themed month."},
			},
			{title: "Pachinko", author: "Min Jin Lee", month: "April"},
			{title: "The Seven Husbands of Evelyn Hugo", author: "Taylor Jenkins Reid", month: "May"},
			{title: "The Thursday Murder Club", author: "Richard Osman", month: "June"},
		},
		s.club.PastVolume(): {
			{
				title:    "Station Eleven",
				author:   "Emily St. John Mandel",
				month:    "January",
				comments: []string{"One of our highest-rated books from last volume."},
			},
			{title: "The Nickel Boys", author: "Colson Whitehead", month: "May"},
			{title: "Demon Copperhead", author: "Barbara Kingsolver", month: "September"},
		},
	}

	now := time.Now().UTC()
	for volume, books := range seeds {
		for _, seed := range books {
			book := &domain.BookRecord{
				ID:         id.MustGenerate(id.PrefixBook),
				UserID:     userID,
				Volume:     volume,
				Year:       s.club.LegacyYear(volume),
				Title:      seed.title,
				Author:     seed.author,
				Month:      seed.month,
				IsFeatured: seed.isFeatured,
				CreatedAt:  now,
			}
			if err := s.store.InsertBook(ctx, book); err != nil {
				return err
			}
			for _, text := range seed.comments {
				comment := &domain.Comment{
					ID:        id.MustGenerate(id.PrefixComment),
					UserID:    userID,
					BookID:    book.ID,
					Text:      text,
					CreatedAt: now,
				}
				if err := s.store.InsertComment(ctx, comment); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
