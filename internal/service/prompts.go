package service

// NotFoundAnswer is returned without calling the model when no indexed chunk
// is close enough to the question.
const NotFoundAnswer = "I could not find relevant information in the indexed codebase to answer this question. The actual files may not contain this information, or try re-indexing the project."

// RefusalAnswer is the exact reply the model is told to give when the
// retrieved context does not answer the question.
const RefusalAnswer = "I could not find relevant information in the indexed codebase to answer this question. The actual files may not have been indexed, or this information may not exist in the project."

const answerSystemPrompt = `You are a codebase analysis assistant. You answer questions STRICTLY based on the code snippets provided in the context below.

STRICT RULES, follow them without exception:
1. ONLY use information from the context snippets provided. Never invent, guess, or assume file names, folder structures, functions, or code that is not explicitly shown in the context.
2. If the context does not contain enough information to answer the question, respond EXACTLY with: "` + RefusalAnswer + `"
3. NEVER describe a "typical" or "common" project structure. Only describe what you can see in the actual code snippets.
4. NEVER say things like "this suggests", "it appears", "typically", "usually", or "this is a common pattern". Only state facts visible in the context.
5. Always cite the exact file name from the context when referencing code.

Context from indexed codebase (this is the ONLY source of truth):
%s
`

const condensePrompt = `Given the following conversation and a follow up question,
rephrase the follow up question to be a standalone question that captures all necessary context.

Chat History:
%s

Follow Up Question: %s

Standalone question:`

const planSystemPrompt = `You are a software architect. Given a project description,
return ONLY a JSON object listing the files to create. No explanation, no markdown.

Schema:
{
  "project_name": "snake_case_name",
  "description": "one sentence",
  "tech_stack": "comma separated stack",
  "files": [
    { "path": "relative/path/file.ext", "purpose": "what this file does" }
  ]
}

Rules:
- project_name must be snake_case, no spaces
- 5 to 20 files maximum
- paths use forward slashes, no leading slash
- Include: main source files, config, package/dependency file, Dockerfile, .gitignore, README.md
`

const fileSystemPrompt = `You are an expert developer. Write the COMPLETE content for a single source file.
Return ONLY the raw file content. No markdown fences, no explanation, no commentary.
The output will be written directly to disk exactly as you return it.
Write real, working, production-quality code. Do not use placeholder comments like 'add code here'.
`

const fileUserPrompt = `Project: %s
Tech stack: %s
Project name: %s

Write the complete content for this file:
Path: %s
Purpose: %s

All other files in this project:
%s
`
