package discord

import "github.com/bwmarrin/discordgo"

// Command names.
const (
	cmdAutoDisconnect = "auto-disconnect"
	cmdAutoReply      = "auto-reply"
	cmdWatchClan      = "watch-clan"
	cmdTrivia         = "trivia"
	cmdMaintenance    = "maintenance"
	cmdClanActivity   = "clan-players-activity"
	cmdBlacklist      = "blacklist"
)

// requiredPermission mirrors DefaultMemberPermissions so a stale guild override is still enforced.
var requiredPermission = map[string]int64{
	cmdAutoDisconnect: discordgo.PermissionVoiceMoveMembers,
	cmdAutoReply:      discordgo.PermissionManageMessages,
	cmdWatchClan:      discordgo.PermissionBanMembers,
	cmdMaintenance:    discordgo.PermissionKickMembers,
	cmdBlacklist:      discordgo.PermissionBanMembers,
}

func perm(p int64) *int64 { return &p }

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func stringOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

func userOption(name, description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        name,
		Description: description,
		Required:    required,
	}
}

// Commands is the guild command set.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     cmdAutoDisconnect,
			Description:              "Déconnecte automatiquement un membre des salons vocaux",
			DefaultMemberPermissions: perm(requiredPermission[cmdAutoDisconnect]),
			Options:                  []*discordgo.ApplicationCommandOption{userOption("user", "Membre concerné", true)},
		},
		{
			Name:                     cmdAutoReply,
			Description:              "Répond automatiquement quand un membre est mentionné",
			DefaultMemberPermissions: perm(requiredPermission[cmdAutoReply]),
			Options: []*discordgo.ApplicationCommandOption{
				userOption("user", "Membre concerné", true),
				stringOption("text", "Réponse à envoyer (vide pour supprimer)", false),
			},
		},
		{
			Name:                     cmdWatchClan,
			Description:              "Surveille les départs d'un clan",
			DefaultMemberPermissions: perm(requiredPermission[cmdWatchClan]),
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Ajoute un clan", stringOption("tag", "Tag du clan", true)),
				subcommand("remove", "Retire un clan", stringOption("tag", "Tag du clan", true)),
			},
		},
		{
			Name:        cmdTrivia,
			Description: "Trivia World of Tanks",
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("game", "Lance la prochaine question du jour"),
				subcommand("rule", "Affiche les règles"),
				subcommand("statistics", "Statistiques du mois", userOption("user", "Joueur (vous par défaut)", false)),
				subcommand("leaderboard", "Classement du mois"),
			},
		},
		{
			Name:                     cmdMaintenance,
			Description:              "Mode maintenance",
			DefaultMemberPermissions: perm(requiredPermission[cmdMaintenance]),
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("start", "Active la maintenance"),
				subcommand("end", "Désactive la maintenance"),
			},
		},
		{
			Name:        cmdClanActivity,
			Description: "Dernière bataille de chaque membre d'un clan",
			Options:     []*discordgo.ApplicationCommandOption{stringOption("clan", "Tag du clan", true)},
		},
		{
			Name:                     cmdBlacklist,
			Description:              "Liste noire du recrutement",
			DefaultMemberPermissions: perm(requiredPermission[cmdBlacklist]),
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("add", "Ajoute un joueur",
					stringOption("nickname", "Pseudo du joueur", true),
					stringOption("reason", "Raison", false)),
				subcommand("remove", "Retire un joueur", stringOption("nickname", "Pseudo du joueur", true)),
			},
		},
	}
}
