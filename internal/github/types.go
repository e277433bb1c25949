package github

// Owner identifies the account a repository or gist belongs to.
type Owner struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Type  string `json:"type"`
}

// Repository is the subset of the GitHub repository object the tool
// consumes.
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	Fork          bool   `json:"fork"`
	DefaultBranch string `json:"default_branch"`
	SSHURL        string `json:"ssh_url"`
	CloneURL      string `json:"clone_url"`
	Owner         Owner  `json:"owner"`
}

func (r Repository) OwnerLogin() string { return r.Owner.Login }

// Gist is the subset of the GitHub gist object the tool consumes. Gist
// ids are stable and unique, so they double as mirror directory names;
// descriptions are free text and often empty.
type Gist struct {
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Public      bool                `json:"public"`
	GitPullURL  string              `json:"git_pull_url"`
	Owner       Owner               `json:"owner"`
	Files       map[string]GistFile `json:"files"`
}

func (g Gist) OwnerLogin() string { return g.Owner.Login }

type GistFile struct {
	Filename string `json:"filename"`
	Language string `json:"language"`
	Size     int64  `json:"size"`
}
