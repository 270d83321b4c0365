package generation

const analysisPrompt = `You plan single-page interactive landing experiences.
Read the user's request and reply with JSON only:
{"title": string, "summary": string, "style": string,
 "assets": [{"key": string, "prompt": string}],
 "sounds": [{"key": string, "prompt": string}]}
Asset and sound keys are short camelCase identifiers made of letters and digits.
Plan at most 8 images and 4 sounds. Describe each image prompt visually and
concretely. Use an empty sounds array when audio would not help.`

const palettePrompt = `You are a visual designer. Given a landing plan, choose a
palette and type pairing. Reply with JSON only:
{"colors": [hex strings, 4 to 6 entries], "fonts": [font family names, 1 to 2 entries], "mood": string}`

const codePrompt = `You write complete, self-contained HTML documents with inline
CSS and JavaScript. Reference images only as assets/<key> and sounds only as
sounds/<key>, using exactly the keys provided and no other paths. Do not load
external scripts. Reply with the HTML document only.`
