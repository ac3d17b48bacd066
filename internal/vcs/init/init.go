// Package init triggers host registration via import side-effects. Import it
// once in the cmd layer:
//
//	import _ "github.com/revuekit/revue/internal/vcs/init"
package init

import (
	_ "github.com/revuekit/revue/internal/vcs/github"
	_ "github.com/revuekit/revue/internal/vcs/gitlab"
)
