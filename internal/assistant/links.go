package assistant

import "strings"

// LinkPair — пара «ключевое слово → ссылка» для обогащения текста истории.
type LinkPair struct {
	Name string
	URL  string
}

// ProductLinks хранит пары в порядке конфигурации, чтобы результат был детерминирован.
type ProductLinks []LinkPair

// ParseProductLinks разбирает пары вида «Название=URL». Некорректные элементы пропускаются.
func ParseProductLinks(raw []string) ProductLinks {
	links := make(ProductLinks, 0, len(raw))
	for _, item := range raw {
		name, url, ok := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		url = strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			continue
		}
		links = append(links, LinkPair{Name: name, URL: url})
	}
	return links
}

// Enrich дописывает ссылку к тексту для каждого упомянутого ключевого слова.
func (pl ProductLinks) Enrich(text string) string {
	if text == "" {
		return text
	}
	for _, link := range pl {
		if strings.Contains(text, link.Name) {
			text += " - " + link.URL
		}
	}
	return text
}
