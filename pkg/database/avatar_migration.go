package database

import (
	"strings"

	"github.com/suteetoe/scouting-service/internal/model"

	"gorm.io/gorm"
)

// MigrateAvatarTags moves legacy "avatar:<url>" tag entries into players.avatar_url
// and strips them from tags. An existing avatar_url is kept. Safe to run repeatedly.
func MigrateAvatarTags(conn *gorm.DB) (int, error) {
	var players []model.Player
	moved := 0

	err := conn.Model(&model.Player{}).
		Where("LOWER(tags) LIKE ?", `%"`+model.AvatarTagPrefix+`%`).
		FindInBatches(&players, 200, func(tx *gorm.DB, batch int) error {
			for i := range players {
				p := &players[i]
				avatar, rest := splitAvatarTags(p.Tags)
				if avatar == "" && len(rest) == len(p.Tags) {
					continue
				}

				p.Tags = rest
				if p.AvatarURL == nil && avatar != "" {
					p.AvatarURL = &avatar
				}
				if err := tx.Model(p).Select("tags", "avatar_url").Updates(p).Error; err != nil {
					return err
				}
				moved++
			}
			return nil
		}).Error

	return moved, err
}

// splitAvatarTags returns the last avatar URL found and the remaining tags.
// The prefix matches in any case.
func splitAvatarTags(tags []string) (string, []string) {
	avatar := ""
	rest := make([]string, 0, len(tags))
	for _, t := range tags {
		if strings.HasPrefix(strings.ToLower(t), model.AvatarTagPrefix) {
			avatar = t[len(model.AvatarTagPrefix):]
			continue
		}
		rest = append(rest, t)
	}
	return avatar, rest
}
