package source

import "encoding/json"

// problemsetQuery is the GraphQL query for one page of the problem list.
const problemsetQuery = `
query problemsetQuestionList($categorySlug: String, $limit: Int, $skip: Int, $filters: QuestionListFilterInput) {
  problemsetQuestionList: questionList(
    categorySlug: $categorySlug
    limit: $limit
    skip: $skip
    filters: $filters
  ) {
    total: totalNum
    questions: data {
      questionId
      questionFrontendId
      title
      titleSlug
      content
      difficulty
      isPaidOnly
      status
      exampleTestcases
      categoryTitle
      topicTags {
        name
        slug
      }
      stats
      codeSnippets {
        lang
        langSlug
        code
      }
      hints
      solution {
        id
        canSeeDetail
      }
      metaData
      enableRunCode
      envInfo
      similarQuestions
      mysqlSchemas
      sampleTestCase
      translatedContent
    }
  }
}
`

// graphQLRequest is the POST body.
type graphQLRequest struct {
	Query     string    `json:"query"`
	Variables variables `json:"variables"`
}

type variables struct {
	CategorySlug string         `json:"categorySlug"`
	Limit        int            `json:"limit"`
	Skip         int            `json:"skip"`
	Filters      map[string]any `json:"filters"`
}

// graphQLResponse is decoded with pointers so missing fields can be told
// apart from zero values.
type graphQLResponse struct {
	Data *struct {
		List *struct {
			Total     *int              `json:"total"`
			Questions []json.RawMessage `json:"questions"`
		} `json:"problemsetQuestionList"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// KeywordFilters returns the filters for a free-text search, or an empty
// filter set when text is empty. The text is not modified.
func KeywordFilters(text string) map[string]any {
	filters := map[string]any{}
	if text != "" {
		filters["searchKeywords"] = text
	}
	return filters
}
