package config

import (
	"time"

	"github.com/spf13/viper"
)

// Task names known to the scheduler.
const (
	TaskPendingEviction = "pending_eviction"
	TaskSQLMaintenance  = "sql_maintenance"
)

// DefaultTopics are the destination forum threads.
func DefaultTopics() []TopicConfig {
	return []TopicConfig{
		{Key: "umumiy", ThreadID: 1, Label: "🧩 Umumiy"},
		{Key: "uy", ThreadID: 197, Label: "🏠 Uy"},
		{Key: "ish", ThreadID: 198, Label: "💼 Ish"},
		{Key: "taksi", ThreadID: 199, Label: "🚖 Taksi"},
		{Key: "visa", ThreadID: 200, Label: "🛂 Visa"},
		{Key: "bozor", ThreadID: 201, Label: "🛒 Bozor"},
		{Key: "ziyorat", ThreadID: 202, Label: "🕌 Ziyorat"},
		{Key: "salomatlik", ThreadID: 203, Label: "🩺 Salomatlik"},
		{Key: "elon", ThreadID: 12, Label: "📣 E’lon"},
	}
}

// DefaultKeywords is the keyword table in priority order.
func DefaultKeywords() []KeywordsConfig {
	return []KeywordsConfig{
		{Topic: "uy", Words: []string{"ijara", "kvartira", "uy", "xonadon", "room", "arenda", "ijaraga", "mehmanxona"}},
		{Topic: "ish", Words: []string{"ish", "vakansiya", "vakans", "job", "работа", "xodim", "ishchi", "maosh", "o‘rin", "o'rin"}},
		{Topic: "taksi", Words: []string{"taksi", "taxi", "careem", "uber", "transport", "mashina", "olib", "borib", "ketish", "narx"}},
		{Topic: "visa", Words: []string{"visa", "viza", "iqoma", "muqim", "muqima", "hujjat", "passport", "pasport", "yurist"}},
		{Topic: "bozor", Words: []string{"sotiladi", "olaman", "olamiz", "bozor", "narx", "arzon", "savdo", "магазин", "куплю", "продам"}},
		{Topic: "ziyorat", Words: []string{"umra", "ziyorat", "maqom", "miqot", "ehrom", "ihram", "talbiya", "duo", "makk", "madin", "haram", "nabaviy", "uhud"}},
		{Topic: "salomatlik", Words: []string{"doktor", "shifokor", "kasal", "og‘riq", "og'riq", "dori", "apteka", "allergiya", "tish", "yo‘tal", "yotal"}},
		{Topic: "elon", Words: []string{"e'lon", "elon", "announcement", "diqqat", "важно", "ogohlantirish"}},
	}
}

// DefaultMessages are the Uzbek user-facing texts.
var DefaultMessages = MessagesConfig{
	Welcome:          "Assalomu alaykum!\nBu bot source kanaldagi postlarni guruh bo‘limlariga avtomat joylaydi.\n\nAdmin: /admin",
	Help:             "Buyruqlar:\n/admin - admin panel\n/keywords - kalit so‘zlar\n/kw_add <bo‘lim> <so‘z> - kalit so‘z qo‘shish\n/kw_del <bo‘lim> <so‘z> - kalit so‘zni o‘chirish\n/stats - oxirgi 24 soat statistikasi",
	AdminPanel:       "🛠 Admin panel:",
	NotAdmin:         "⛔ Siz admin emassiz.",
	NotAdminAlert:    "⛔ Admin emas",
	OK:               "OK",
	Saved:            "✅ Saqlandi",
	KeywordsReset:    "✅ Qaytarildi",
	ChooseDefault:    "Default bo‘limni tanlang:",
	KeywordsHeader:   "🧠 Keywords:",
	ModeAuto:         "✅ AUTO",
	ModeManual:       "🖐 MANUAL",
	ModeButtonFmt:    "Rejim: %s",
	DefaultButtonFmt: "Default: %s",
	ShowKeywords:     "🧠 Keywords ko‘rish",
	ResetKeywords:    "♻️ Keywords defaultga qaytarish",
	Back:             "⬅️ Orqaga",
	ApprovalHeader:   "📥 Yangi post keldi. Qaysi bo‘limga yuboray?",
	ApprovalNoText:   "(Matn yo‘q, media post)",
	PendingExpired:   "Bu post topilmadi (eskirib ketgan).",
	BadCallback:      "Xato",
	Sent:             "✅ Yuborildi",
	SentFmt:          "✅ Yuborildi: %s",
	SendFailed:       "❌ Yuborilmadi, qayta urinib ko‘ring.",
	KeywordUsageFmt:  "Foydalanish: /%s <bo‘lim> <so‘z>",
	KeywordAddedFmt:  "✅ %s: «%s» qo‘shildi",
	KeywordExists:    "Bu kalit so‘z allaqachon bor.",
	KeywordDelFmt:    "✅ %s: «%s» o‘chirildi",
	KeywordNotFound:  "Bunday kalit so‘z topilmadi.",
	UnknownTopicFmt:  "Noma’lum bo‘lim: %s",
	StatsHeaderFmt:   "📊 Oxirgi 24 soat: %d ta post",
	StatsEmpty:       "📊 Oxirgi 24 soatda post yo‘q.",
	GeneralError:     "❌ Xatolik yuz berdi. Keyinroq urinib ko‘ring.",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.source_chat_id", 0)
	v.SetDefault("telegram.dest_chat_id", 0)
	v.SetDefault("telegram.bot_username", "")
	v.SetDefault("telegram.drop_pending_updates", true)

	v.SetDefault("routing.default_mode", "auto")
	v.SetDefault("routing.default_topic", "umumiy")
	v.SetDefault("routing.fallback_topic", "umumiy")
	v.SetDefault("routing.album_quiet_period", 1200*time.Millisecond)
	v.SetDefault("routing.album_memory", time.Minute)
	v.SetDefault("routing.pending_ttl", 24*time.Hour)
	v.SetDefault("routing.pending_capacity", 500)
	v.SetDefault("routing.caption_limit", 1024)
	v.SetDefault("routing.text_limit", 4096)
	v.SetDefault("routing.preview_limit", 500)

	v.SetDefault("database.path", "topicrelay.db")

	v.SetDefault("scheduler.tasks."+TaskPendingEviction+".enabled", true)
	v.SetDefault("scheduler.tasks."+TaskPendingEviction+".schedule", "0 */10 * * * *")
	v.SetDefault("scheduler.tasks."+TaskSQLMaintenance+".enabled", true)
	v.SetDefault("scheduler.tasks."+TaskSQLMaintenance+".schedule", "0 30 4 * * *")

	v.SetDefault("metrics.addr", ":9090")
}

// applyCompiledDefaults fills the list and text sections that were not
// configured. Lists are replaced as a whole, never merged item by item.
func applyCompiledDefaults(cfg *Config) {
	if len(cfg.Routing.Topics) == 0 {
		cfg.Routing.Topics = DefaultTopics()
	}
	if cfg.Routing.Keywords == nil {
		cfg.Routing.Keywords = DefaultKeywords()
	}
	for i, t := range cfg.Routing.Topics {
		if t.Label == "" {
			cfg.Routing.Topics[i].Label = t.Key
		}
	}

	m := &cfg.Messages
	d := DefaultMessages
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Welcome, d.Welcome)
	fill(&m.Help, d.Help)
	fill(&m.AdminPanel, d.AdminPanel)
	fill(&m.NotAdmin, d.NotAdmin)
	fill(&m.NotAdminAlert, d.NotAdminAlert)
	fill(&m.OK, d.OK)
	fill(&m.Saved, d.Saved)
	fill(&m.KeywordsReset, d.KeywordsReset)
	fill(&m.ChooseDefault, d.ChooseDefault)
	fill(&m.KeywordsHeader, d.KeywordsHeader)
	fill(&m.ModeAuto, d.ModeAuto)
	fill(&m.ModeManual, d.ModeManual)
	fill(&m.ModeButtonFmt, d.ModeButtonFmt)
	fill(&m.DefaultButtonFmt, d.DefaultButtonFmt)
	fill(&m.ShowKeywords, d.ShowKeywords)
	fill(&m.ResetKeywords, d.ResetKeywords)
	fill(&m.Back, d.Back)
	fill(&m.ApprovalHeader, d.ApprovalHeader)
	fill(&m.ApprovalNoText, d.ApprovalNoText)
	fill(&m.PendingExpired, d.PendingExpired)
	fill(&m.BadCallback, d.BadCallback)
	fill(&m.Sent, d.Sent)
	fill(&m.SentFmt, d.SentFmt)
	fill(&m.SendFailed, d.SendFailed)
	fill(&m.KeywordUsageFmt, d.KeywordUsageFmt)
	fill(&m.KeywordAddedFmt, d.KeywordAddedFmt)
	fill(&m.KeywordExists, d.KeywordExists)
	fill(&m.KeywordDelFmt, d.KeywordDelFmt)
	fill(&m.KeywordNotFound, d.KeywordNotFound)
	fill(&m.UnknownTopicFmt, d.UnknownTopicFmt)
	fill(&m.StatsHeaderFmt, d.StatsHeaderFmt)
	fill(&m.StatsEmpty, d.StatsEmpty)
	fill(&m.GeneralError, d.GeneralError)
}
